package handlers

import (
	"context"

	"starboard-bot/bot"

	"github.com/bwmarrin/discordgo"
)

// InteractionCreate handles slash commands and review buttons.
func InteractionCreate(b *bot.Bot) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			CommandDispatcher(b, s, i)
		case discordgo.InteractionMessageComponent:
			HandleReviewButton(context.Background(), s, b.Services.Reviews, b.Config(), i)
		}
	}
}
