package publisher

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"starboard-bot/models"
	"starboard-bot/starboard"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// Custom ids of the review buttons on queue posts.
const (
	AcceptButtonID = "starboard_accept"
	DenyButtonID   = "starboard_deny"
)

const embedColor = 0xf1c40f

// Session is the part of *discordgo.Session the publisher uses.
type Session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
}

// Discord posts curated messages to the queue and highlight channels.
type Discord struct {
	session Session
	cfg     models.StarboardConfig
	log     logrus.FieldLogger
}

func NewDiscord(session Session, cfg models.StarboardConfig, logger logrus.FieldLogger) *Discord {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Discord{session: session, cfg: cfg, log: logger.WithField("component", "publisher")}
}

// PostToQueue posts rec to the review queue with accept/deny buttons.
func (d *Discord) PostToQueue(ctx context.Context, rec *models.CuratedMessage) (starboard.PostedRef, error) {
	msg, err := d.session.ChannelMessageSendComplex(d.cfg.QueueChannel, &discordgo.MessageSend{
		Content: d.header(rec),
		Embeds:  []*discordgo.MessageEmbed{d.Embed(rec)},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Accept", Style: discordgo.SuccessButton, CustomID: AcceptButtonID},
				discordgo.Button{Label: "Deny", Style: discordgo.DangerButton, CustomID: DenyButtonID},
			}},
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return starboard.PostedRef{}, fmt.Errorf("failed to post to queue channel %s: %w", d.cfg.QueueChannel, err)
	}
	return starboard.PostedRef{MessageID: msg.ID, ChannelID: msg.ChannelID}, nil
}

// PostHighlight posts rec to the public channel and stars it.
func (d *Discord) PostHighlight(ctx context.Context, rec *models.CuratedMessage) (starboard.PostedRef, error) {
	msg, err := d.session.ChannelMessageSendComplex(d.cfg.PostChannel, &discordgo.MessageSend{
		Content:         d.header(rec),
		Embeds:          []*discordgo.MessageEmbed{d.Embed(rec)},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return starboard.PostedRef{}, fmt.Errorf("failed to post to highlight channel %s: %w", d.cfg.PostChannel, err)
	}

	// 反应失败不影响帖子本身
	if err := d.session.MessageReactionAdd(msg.ChannelID, msg.ID, d.cfg.StarEmoji, discordgo.WithContext(ctx)); err != nil {
		d.log.WithError(err).WithField("message_id", msg.ID).Warn("failed to star highlight post")
	}
	return starboard.PostedRef{MessageID: msg.ID, ChannelID: msg.ChannelID}, nil
}

// Retract deletes a post that could not be committed.
func (d *Discord) Retract(ctx context.Context, ref starboard.PostedRef) error {
	if ref.MessageID == "" || ref.ChannelID == "" {
		return nil
	}
	if err := d.session.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete message %s: %w", ref.MessageID, err)
	}
	return nil
}

func (d *Discord) header(rec *models.CuratedMessage) string {
	return fmt.Sprintf("%s **%d** | <#%s>", d.cfg.StarEmoji, rec.StarCount, rec.SourceChannelID)
}

// JumpURL links to the source message.
func (d *Discord) JumpURL(rec *models.CuratedMessage) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", d.cfg.GuildID, rec.SourceChannelID, rec.SourceMessageID)
}

// Embed renders rec the same way in the queue and the highlight channel.
func (d *Discord) Embed(rec *models.CuratedMessage) *discordgo.MessageEmbed {
	author := &discordgo.MessageEmbedAuthor{Name: rec.AuthorDisplayName}
	if rec.AuthorAvatarURL != nil {
		author.IconURL = *rec.AuthorAvatarURL
	}

	var desc strings.Builder
	if rec.IsForwarded {
		desc.WriteString("*Forwarded*\n")
	}
	if rec.ReplySourceMessageID != nil {
		name := "someone"
		if rec.ReplyAuthorDisplayName != nil {
			name = *rec.ReplyAuthorDisplayName
		}
		fmt.Fprintf(&desc, "> Replying to **%s**\n", name)
	}
	desc.WriteString(rec.Content)
	text := desc.String()
	if len(text) > 4096 {
		text = text[:4093] + "..."
	}

	embed := &discordgo.MessageEmbed{
		Author:      author,
		Description: text,
		Color:       embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Source", Value: fmt.Sprintf("[Jump to message](%s)", d.JumpURL(rec))},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: rec.SourceMessageID},
	}
	if rec.ID != 0 {
		embed.Footer.Text = fmt.Sprintf("%s • #%s", rec.SourceMessageID, strconv.FormatInt(rec.ID, 10))
	}

	for i, url := range rec.AttachmentURLs {
		if i == 0 && isImage(url) {
			embed.Image = &discordgo.MessageEmbedImage{URL: url}
			continue
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Attachment %d", i+1),
			Value: url,
		})
	}
	return embed
}

func isImage(url string) bool {
	lower := strings.ToLower(url)
	if i := strings.IndexByte(lower, '?'); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".webp"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
