package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"starboard-bot/bot"
	apperrors "starboard-bot/errors"
	"starboard-bot/models"
	"starboard-bot/utils"

	"github.com/bwmarrin/discordgo"
)

type overrideAdmin interface {
	Set(ctx context.Context, channelID string, threshold int) error
	Remove(ctx context.Context, channelID string) (bool, error)
	All() []models.ChannelOverride
}

type recordLookup interface {
	Get(ctx context.Context, messageID string) (*models.CuratedMessage, error)
}

// HandleStarboard handles the /starboard subcommands.
func HandleStarboard(ctx context.Context, s *discordgo.Session, svc *bot.Services, i *discordgo.InteractionCreate) {
	content := starboardReply(ctx, svc.Overrides, svc.Cache, svc.Thresholds.Default(), i.ApplicationCommandData().Options)
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func starboardReply(ctx context.Context, overrides overrideAdmin, records recordLookup, defaultThreshold int, options []*discordgo.ApplicationCommandInteractionDataOption) string {
	if len(options) == 0 {
		return "🚫内部错误：missing subcommand."
	}
	sub := options[0]
	optionMap := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(sub.Options))
	for _, opt := range sub.Options {
		optionMap[opt.Name] = opt
	}

	switch sub.Name {
	case "override-set":
		channelID := optionMap["channel"].ChannelValue(nil).ID
		threshold := int(optionMap["threshold"].IntValue())
		if err := overrides.Set(ctx, channelID, threshold); err != nil {
			return commandError("override-set", err)
		}
		return fmt.Sprintf("✅ <#%s> now needs %d stars.", channelID, threshold)

	case "override-remove":
		channelID := optionMap["channel"].ChannelValue(nil).ID
		removed, err := overrides.Remove(ctx, channelID)
		if err != nil {
			return commandError("override-remove", err)
		}
		if !removed {
			return fmt.Sprintf("<#%s> has no override.", channelID)
		}
		return fmt.Sprintf("✅ <#%s> uses the default threshold (%d) again.", channelID, defaultThreshold)

	case "override-list":
		all := overrides.All()
		if len(all) == 0 {
			return fmt.Sprintf("No overrides. Every channel needs %d stars.", defaultThreshold)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Default: %d\n", defaultThreshold)
		for _, ov := range all {
			fmt.Fprintf(&b, "<#%s>: %d\n", ov.ChannelID, ov.Threshold)
		}
		return b.String()

	case "show":
		messageID := strings.TrimSpace(optionMap["message_id"].StringValue())
		rec, err := records.Get(ctx, messageID)
		if err != nil {
			return commandError("show", err)
		}
		if rec == nil {
			return fmt.Sprintf("Message %s is not curated.", messageID)
		}
		return describeRecord(rec)
	}
	return "🚫内部错误：Unknown subcommand."
}

func describeRecord(rec *models.CuratedMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**#%d** by %s in <#%s>\n", rec.ID, rec.AuthorDisplayName, rec.SourceChannelID)
	fmt.Fprintf(&b, "Status: `%s`, stars: %d\n", rec.Status, rec.StarCount)
	if rec.PostedMessageID != "" {
		fmt.Fprintf(&b, "Posted: %s in <#%s>\n", rec.PostedMessageID, rec.PostedChannelID)
	}
	return b.String()
}

func commandError(operation string, err error) string {
	utils.Logger.WithError(err).WithField("operation", operation).Warn("starboard command failed")
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code == apperrors.ErrCodeInvalidConfig {
		return "🚫 " + appErr.Message
	}
	return "🚫 Something went wrong, please try again."
}

// HandlePing handles the logic for the /ping command.
func HandlePing(s *discordgo.Session, i *discordgo.InteractionCreate) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Pong!",
		},
	})
}
