package handlers

import (
	"context"
	"fmt"
	"time"

	"starboard-bot/bot"
	"starboard-bot/models"
	"starboard-bot/starboard"
	"starboard-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// Discord returns at most this many reactors per request.
const reactionPageSize = 100

type messageSource interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactions(channelID, messageID, emojiID string, limit int, beforeID, afterID string, options ...discordgo.RequestOption) ([]*discordgo.User, error)
}

type starObserver interface {
	Observe(ctx context.Context, snapshot *models.CuratedMessage) (starboard.CurationOutcome, error)
}

// ReactionAdd feeds star reactions into the curator.
func ReactionAdd(b *bot.Bot) func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	return func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		botID := ""
		if s.State != nil && s.State.User != nil {
			botID = s.State.User.ID
		}
		if err := handleReaction(ctx, s, b.Services.Curator, b.Config(), botID, r.MessageReaction); err != nil {
			utils.Logger.WithError(err).WithFields(logrus.Fields{
				"channel_id": r.ChannelID,
				"message_id": r.MessageID,
			}).Warn("failed to process star reaction")
		}
	}
}

func handleReaction(ctx context.Context, src messageSource, curator starObserver, cfg models.StarboardConfig, botID string, r *discordgo.MessageReaction) error {
	if !cfg.Active || r == nil || r.GuildID != cfg.GuildID {
		return nil
	}
	if r.ChannelID == cfg.QueueChannel || r.ChannelID == cfg.PostChannel {
		return nil
	}
	if r.UserID == botID || !isStarEmoji(r.Emoji, cfg.StarEmoji) {
		return nil
	}

	msg, err := src.ChannelMessage(r.ChannelID, r.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to fetch message: %w", err)
	}
	if msg.Author == nil || msg.Author.Bot {
		return nil
	}

	stars, err := countStars(ctx, src, r.ChannelID, r.MessageID, r.Emoji.APIName(), msg.Author.ID)
	if err != nil {
		return err
	}
	if stars == 0 {
		return nil
	}

	snapshot := buildSnapshot(msg, stars)
	snapshot.SourceChannelID = r.ChannelID
	_, err = curator.Observe(ctx, snapshot)
	return err
}

func isStarEmoji(e discordgo.Emoji, star string) bool {
	return e.Name == star || e.APIName() == star
}

// countStars counts distinct reactors, leaving out bots and the author.
func countStars(ctx context.Context, src messageSource, channelID, messageID, emoji, authorID string) (int, error) {
	count := 0
	after := ""
	for {
		users, err := src.MessageReactions(channelID, messageID, emoji, reactionPageSize, "", after, discordgo.WithContext(ctx))
		if err != nil {
			return 0, fmt.Errorf("failed to list reactions: %w", err)
		}
		for _, u := range users {
			if u.Bot || u.ID == authorID {
				continue
			}
			count++
		}
		if len(users) < reactionPageSize {
			return count, nil
		}
		after = users[len(users)-1].ID
	}
}

// buildSnapshot captures msg as it looks now. Forwarded messages are curated
// with the forwarded content.
func buildSnapshot(msg *discordgo.Message, stars int) *models.CuratedMessage {
	avatar := msg.Author.AvatarURL("")
	rec := &models.CuratedMessage{
		AuthorID:          msg.Author.ID,
		AuthorDisplayName: msg.Author.DisplayName(),
		AuthorAvatarURL:   &avatar,
		Content:           msg.Content,
		SourceChannelID:   msg.ChannelID,
		SourceMessageID:   msg.ID,
		AttachmentURLs:    attachmentURLs(msg.Attachments),
		StarCount:         stars,
	}
	if msg.Member != nil && msg.Member.Nick != "" {
		rec.AuthorDisplayName = msg.Member.Nick
	}

	if msg.MessageReference != nil && msg.MessageReference.Type == discordgo.MessageReferenceTypeForward {
		rec.IsForwarded = true
		if len(msg.MessageSnapshots) > 0 && msg.MessageSnapshots[0].Message != nil {
			fwd := msg.MessageSnapshots[0].Message
			rec.Content = fwd.Content
			rec.AttachmentURLs = append(rec.AttachmentURLs, attachmentURLs(fwd.Attachments)...)
		}
	} else if ref := msg.ReferencedMessage; ref != nil {
		id := ref.ID
		rec.ReplySourceMessageID = &id
		if ref.Author != nil {
			name := ref.Author.DisplayName()
			rec.ReplyAuthorDisplayName = &name
		}
	}
	return rec
}

func attachmentURLs(attachments []*discordgo.MessageAttachment) []string {
	urls := make([]string, 0, len(attachments))
	for _, a := range attachments {
		urls = append(urls, a.URL)
	}
	return urls
}
