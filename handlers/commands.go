package handlers

import (
	"context"
	"time"

	"starboard-bot/bot"

	"github.com/bwmarrin/discordgo"
)

var commandPermissions = map[string]string{
	"starboard": "admin",
	"ping":      "guest",
}

// CommandDispatcher is the central handler for all application command interactions.
// It performs permission checks and then dispatches the interaction to the appropriate handler.
func CommandDispatcher(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	commandName := i.ApplicationCommandData().Name
	requiredLevel, ok := commandPermissions[commandName]

	if ok {
		if !b.Auth.CheckPermission(s, i, requiredLevel) {
			s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: "🚫 你没有权限执行此命令",
					Flags:   discordgo.MessageFlagsEphemeral,
				},
			})
			return
		}
	}

	switch commandName {
	case "starboard":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		HandleStarboard(ctx, s, b.Services, i)
	case "ping":
		HandlePing(s, i)
	default:
		// Optionally, send an error message for unknown commands.
		s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "🚫内部错误：Unknown command.",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
	}
}
