package handlers

import (
	"context"
	"fmt"
	"testing"

	"starboard-bot/models"
	"starboard-bot/starboard"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeMessageSource struct {
	msg      *discordgo.Message
	reactors []*discordgo.User
	pages    int
}

func (f *fakeMessageSource) ChannelMessage(string, string, ...discordgo.RequestOption) (*discordgo.Message, error) {
	return f.msg, nil
}

func (f *fakeMessageSource) MessageReactions(_, _, _ string, limit int, _, afterID string, _ ...discordgo.RequestOption) ([]*discordgo.User, error) {
	f.pages++
	start := 0
	if afterID != "" {
		for i, u := range f.reactors {
			if u.ID == afterID {
				start = i + 1
			}
		}
	}
	end := start + limit
	if end > len(f.reactors) {
		end = len(f.reactors)
	}
	return f.reactors[start:end], nil
}

type mockObserver struct{ mock.Mock }

func (m *mockObserver) Observe(ctx context.Context, snapshot *models.CuratedMessage) (starboard.CurationOutcome, error) {
	args := m.Called(ctx, snapshot)
	return args.Get(0).(starboard.CurationOutcome), args.Error(1)
}

func starReaction(channelID string) *discordgo.MessageReaction {
	return &discordgo.MessageReaction{
		UserID:    "fan",
		MessageID: "m1",
		ChannelID: channelID,
		GuildID:   "g",
		Emoji:     discordgo.Emoji{Name: "⭐"},
	}
}

func sourceMessage() *discordgo.Message {
	return &discordgo.Message{
		ID:          "m1",
		ChannelID:   "general",
		Content:     "look at this",
		Author:      &discordgo.User{ID: "author", Username: "alice", GlobalName: "Alice"},
		Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn.example/a.png"}},
	}
}

func TestHandleReaction_CountsDistinctHumansExceptAuthor(t *testing.T) {
	src := &fakeMessageSource{
		msg: sourceMessage(),
		reactors: []*discordgo.User{
			{ID: "u1"}, {ID: "u2"}, {ID: "author"}, {ID: "robot", Bot: true}, {ID: "u3"},
		},
	}
	observer := new(mockObserver)
	observer.On("Observe", mock.Anything, mock.MatchedBy(func(rec *models.CuratedMessage) bool {
		return rec.StarCount == 3 &&
			rec.SourceMessageID == "m1" &&
			rec.SourceChannelID == "general" &&
			rec.AuthorDisplayName == "Alice" &&
			rec.Content == "look at this" &&
			len(rec.AttachmentURLs) == 1
	})).Return(starboard.CurationQueued, nil).Once()

	require.NoError(t, handleReaction(context.Background(), src, observer, buttonConfig, "bot", starReaction("general")))
	observer.AssertExpectations(t)
}

func TestHandleReaction_PagesThroughReactors(t *testing.T) {
	var reactors []*discordgo.User
	for i := 0; i < 250; i++ {
		reactors = append(reactors, &discordgo.User{ID: fmt.Sprintf("u%03d", i)})
	}
	src := &fakeMessageSource{msg: sourceMessage(), reactors: reactors}

	count, err := countStars(context.Background(), src, "general", "m1", "⭐", "author")
	require.NoError(t, err)
	assert.Equal(t, 250, count)
	assert.Equal(t, 3, src.pages)
}

func TestHandleReaction_Ignored(t *testing.T) {
	tests := []struct {
		name     string
		reaction *discordgo.MessageReaction
		msg      *discordgo.Message
	}{
		{"queue channel", starReaction("queue"), sourceMessage()},
		{"highlight channel", starReaction("posts"), sourceMessage()},
		{"other guild", func() *discordgo.MessageReaction { r := starReaction("general"); r.GuildID = "x"; return r }(), sourceMessage()},
		{"other emoji", func() *discordgo.MessageReaction { r := starReaction("general"); r.Emoji.Name = "👍"; return r }(), sourceMessage()},
		{"bot author", starReaction("general"), func() *discordgo.Message { m := sourceMessage(); m.Author.Bot = true; return m }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observer := new(mockObserver)
			src := &fakeMessageSource{msg: tt.msg, reactors: []*discordgo.User{{ID: "u1"}}}

			require.NoError(t, handleReaction(context.Background(), src, observer, buttonConfig, "bot", tt.reaction))
			observer.AssertNotCalled(t, "Observe", mock.Anything, mock.Anything)
		})
	}
}

func TestBuildSnapshot_ReplyAndForward(t *testing.T) {
	reply := sourceMessage()
	reply.ReferencedMessage = &discordgo.Message{ID: "parent", Author: &discordgo.User{Username: "bob"}}
	rec := buildSnapshot(reply, 4)
	require.NotNil(t, rec.ReplySourceMessageID)
	assert.Equal(t, "parent", *rec.ReplySourceMessageID)
	assert.Equal(t, "bob", *rec.ReplyAuthorDisplayName)
	assert.False(t, rec.IsForwarded)
	assert.NotNil(t, rec.AuthorAvatarURL)

	fwd := sourceMessage()
	fwd.Content = ""
	fwd.Attachments = nil
	fwd.MessageReference = &discordgo.MessageReference{Type: discordgo.MessageReferenceTypeForward, MessageID: "orig"}
	fwd.MessageSnapshots = []discordgo.MessageSnapshot{{Message: &discordgo.Message{
		Content:     "forwarded text",
		Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn.example/b.png"}},
	}}}
	rec = buildSnapshot(fwd, 4)
	assert.True(t, rec.IsForwarded)
	assert.Equal(t, "forwarded text", rec.Content)
	assert.Equal(t, []string{"https://cdn.example/b.png"}, rec.AttachmentURLs)
	assert.Nil(t, rec.ReplySourceMessageID)
}
