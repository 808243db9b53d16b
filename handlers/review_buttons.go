package handlers

import (
	"context"
	"fmt"

	apperrors "starboard-bot/errors"
	"starboard-bot/models"
	"starboard-bot/publisher"
	"starboard-bot/starboard"
	"starboard-bot/utils"

	"github.com/bwmarrin/discordgo"
)

type interactionSession interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type reviewHandler interface {
	Handle(ctx context.Context, req starboard.ReviewRequest) (starboard.Result, error)
}

// HandleReviewButton applies an accept/deny press on a queue post. Presses
// outside the queue channel are ignored.
func HandleReviewButton(ctx context.Context, s interactionSession, reviews reviewHandler, cfg models.StarboardConfig, i *discordgo.InteractionCreate) {
	if !cfg.Active || i.Message == nil || i.ChannelID != cfg.QueueChannel {
		return
	}

	var outcome starboard.Outcome
	switch i.MessageComponentData().CustomID {
	case publisher.AcceptButtonID:
		outcome = starboard.OutcomeAccept
	case publisher.DenyButtonID:
		outcome = starboard.OutcomeDeny
	default:
		return
	}

	user := interactionUser(i)
	if user == nil {
		return
	}

	// Acknowledge first; a review may post to the highlight channel and take
	// longer than the interaction deadline.
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		utils.Logger.WithError(err).Warn("failed to acknowledge review button")
		return
	}

	res, err := reviews.Handle(ctx, starboard.ReviewRequest{
		ReviewerID:      user.ID,
		TargetMessageID: i.Message.ID,
		Outcome:         outcome,
	})
	if err != nil {
		followupEphemeral(s, i, reviewErrorMessage(err))
		return
	}

	switch res.Kind {
	case starboard.ResultInFlight:
		followupEphemeral(s, i, "⏳ Someone is already reviewing this message.")
		return
	case starboard.ResultAccepted:
		markReviewed(s, i, fmt.Sprintf("Approved by <@%s>", user.ID))
	case starboard.ResultDenied:
		markReviewed(s, i, fmt.Sprintf("Denied by <@%s>", user.ID))
	}
}

func markReviewed(s interactionSession, i *discordgo.InteractionCreate, content string) {
	components := []discordgo.MessageComponent{}
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:    &content,
		Components: &components,
	}); err != nil {
		utils.Logger.WithError(err).WithField("message_id", i.Message.ID).Warn("failed to update queue post")
	}
}

func reviewErrorMessage(err error) string {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeUnauthorized:
		return "🚫 You are not allowed to review starboard posts."
	case apperrors.ErrCodeNotFound, apperrors.ErrCodeIllegalTransition:
		return "This message has already been reviewed."
	case apperrors.ErrCodePublishFailed:
		utils.Logger.WithError(err).Warn("highlight post failed")
		return "⚠️ Could not post to the starboard channel. Try again."
	default:
		utils.Logger.WithError(err).Error("review failed")
		return "⚠️ Review failed. Try again."
	}
}

func followupEphemeral(s interactionSession, i *discordgo.InteractionCreate, content string) {
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		utils.Logger.WithError(err).Warn("failed to send followup")
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
