package utils

import (
	"testing"

	"starboard-bot/models"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func testAuth() *Auth {
	return NewAuthWith(models.CommandsConfig{
		Auth: models.AuthConfig{
			Developers:  []string{"dev"},
			AdminsRoles: []string{"mods"},
		},
	}, []string{"rev1", "rev2"})
}

func TestAuth_IsReviewer(t *testing.T) {
	a := testAuth()
	assert.True(t, a.IsReviewer("rev1"))
	assert.True(t, a.IsDeveloper("dev"))
	assert.False(t, a.IsReviewer("dev"), "developers are not implicitly reviewers")
	assert.False(t, a.IsReviewer("someone"))
}

func TestAuth_CheckPermission(t *testing.T) {
	a := testAuth()
	interaction := func(userID string, roles ...string) *discordgo.InteractionCreate {
		return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: roles},
		}}
	}

	assert.True(t, a.CheckPermission(nil, interaction("dev"), "developer"))
	assert.False(t, a.CheckPermission(nil, interaction("x", "mods"), "developer"))
	assert.True(t, a.CheckPermission(nil, interaction("x", "mods"), "admin"))
	assert.False(t, a.CheckPermission(nil, interaction("x", "other"), "admin"))
	assert.True(t, a.CheckPermission(nil, interaction("x"), "guest"))
	assert.False(t, a.CheckPermission(nil, interaction("dev"), "owner"))

	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: &discordgo.User{ID: "dev"}}}
	assert.False(t, a.CheckPermission(nil, dm, "guest"))
}
