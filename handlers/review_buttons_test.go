package handlers

import (
	"context"
	"testing"

	apperrors "starboard-bot/errors"
	"starboard-bot/models"
	"starboard-bot/publisher"
	"starboard-bot/starboard"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeInteractionSession struct {
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
	followups []*discordgo.WebhookParams
}

func (f *fakeInteractionSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeInteractionSession) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, edit)
	return &discordgo.Message{}, nil
}

func (f *fakeInteractionSession) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.followups = append(f.followups, data)
	return &discordgo.Message{}, nil
}

type mockReviews struct{ mock.Mock }

func (m *mockReviews) Handle(ctx context.Context, req starboard.ReviewRequest) (starboard.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(starboard.Result), args.Error(1)
}

var buttonConfig = models.StarboardConfig{Active: true, GuildID: "g", QueueChannel: "queue", PostChannel: "posts", StarEmoji: "⭐"}

func buttonPress(channelID, customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionMessageComponent,
		ChannelID: channelID,
		Message:   &discordgo.Message{ID: "queue-post", ChannelID: channelID},
		Member:    &discordgo.Member{User: &discordgo.User{ID: "reviewer"}},
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID},
	}}
}

func TestReviewButton_Accept(t *testing.T) {
	s := &fakeInteractionSession{}
	reviews := new(mockReviews)
	reviews.On("Handle", mock.Anything, starboard.ReviewRequest{
		ReviewerID:      "reviewer",
		TargetMessageID: "queue-post",
		Outcome:         starboard.OutcomeAccept,
	}).Return(starboard.Result{Kind: starboard.ResultAccepted}, nil)

	HandleReviewButton(context.Background(), s, reviews, buttonConfig, buttonPress("queue", publisher.AcceptButtonID))

	require.Len(t, s.responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, s.responses[0].Type)
	require.Len(t, s.edits, 1)
	assert.Equal(t, "Approved by <@reviewer>", *s.edits[0].Content)
	assert.Empty(t, *s.edits[0].Components)
	assert.Empty(t, s.followups)
	reviews.AssertExpectations(t)
}

func TestReviewButton_Deny(t *testing.T) {
	s := &fakeInteractionSession{}
	reviews := new(mockReviews)
	reviews.On("Handle", mock.Anything, mock.MatchedBy(func(req starboard.ReviewRequest) bool {
		return req.Outcome == starboard.OutcomeDeny
	})).Return(starboard.Result{Kind: starboard.ResultDenied}, nil)

	HandleReviewButton(context.Background(), s, reviews, buttonConfig, buttonPress("queue", publisher.DenyButtonID))

	require.Len(t, s.edits, 1)
	assert.Equal(t, "Denied by <@reviewer>", *s.edits[0].Content)
}

func TestReviewButton_IgnoredOutsideQueue(t *testing.T) {
	s := &fakeInteractionSession{}
	reviews := new(mockReviews)

	HandleReviewButton(context.Background(), s, reviews, buttonConfig, buttonPress("general", publisher.AcceptButtonID))
	HandleReviewButton(context.Background(), s, reviews, buttonConfig, buttonPress("queue", "something_else"))

	inactive := buttonConfig
	inactive.Active = false
	HandleReviewButton(context.Background(), s, reviews, inactive, buttonPress("queue", publisher.AcceptButtonID))

	assert.Empty(t, s.responses)
	reviews.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
}

func TestReviewButton_NoOpAndErrorsAreEphemeral(t *testing.T) {
	tests := []struct {
		name   string
		result starboard.Result
		err    error
		want   string
	}{
		{"in flight", starboard.Result{Kind: starboard.ResultInFlight}, nil, "⏳ Someone is already reviewing this message."},
		{"unauthorized", starboard.Result{}, apperrors.NewUnauthorizedError("reviewer"), "🚫 You are not allowed to review starboard posts."},
		{"already reviewed", starboard.Result{}, apperrors.NewNotFoundError("curated message", "queue-post"), "This message has already been reviewed."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeInteractionSession{}
			reviews := new(mockReviews)
			reviews.On("Handle", mock.Anything, mock.Anything).Return(tt.result, tt.err)

			HandleReviewButton(context.Background(), s, reviews, buttonConfig, buttonPress("queue", publisher.AcceptButtonID))

			assert.Empty(t, s.edits, "the queue post keeps its buttons")
			require.Len(t, s.followups, 1)
			assert.Equal(t, tt.want, s.followups[0].Content)
			assert.Equal(t, discordgo.MessageFlagsEphemeral, s.followups[0].Flags)
		})
	}
}
