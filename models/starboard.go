package models

import (
	"database/sql/driver"
	"fmt"
	"slices"
)

// Status is the review state of a curated message.
type Status uint8

const (
	// StatusUnknown is the zero value and is never written to the store.
	StatusUnknown Status = iota
	StatusInReview
	StatusAccepted
	StatusDenied
)

var statusNames = map[Status]string{
	StatusInReview: "in_review",
	StatusAccepted: "accepted",
	StatusDenied:   "denied",
}

// String returns the store representation of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusDenied
}

// ParseStatus decodes the store representation. Unknown values are an error.
func ParseStatus(v string) (Status, error) {
	switch v {
	case "in_review":
		return StatusInReview, nil
	case "accepted":
		return StatusAccepted, nil
	case "denied":
		return StatusDenied, nil
	default:
		return StatusUnknown, fmt.Errorf("unknown starboard status %q", v)
	}
}

// Value implements driver.Valuer.
func (s Status) Value() (driver.Value, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("cannot store starboard status %d", uint8(s))
	}
	return name, nil
}

func (s Status) MarshalText() ([]byte, error) {
	v, err := s.Value()
	if err != nil {
		return nil, err
	}
	return []byte(v.(string)), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Scan implements sql.Scanner.
func (s *Status) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		return fmt.Errorf("starboard status is NULL")
	default:
		return fmt.Errorf("cannot scan %T into starboard status", src)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CuratedMessage is one source message that crossed the star threshold.
//
// While the record is in review PostedMessageID/PostedChannelID point at the
// review queue message; accepting it replaces them with the highlight post.
type CuratedMessage struct {
	ID                     int64    `json:"id"`
	AuthorID               string   `json:"author_id"`
	AuthorDisplayName      string   `json:"author_display_name"`
	AuthorAvatarURL        *string  `json:"author_avatar_url,omitempty"`
	Content                string   `json:"content"`
	SourceChannelID        string   `json:"source_channel_id"`
	SourceMessageID        string   `json:"source_message_id"`
	AttachmentURLs         []string `json:"attachment_urls"`
	StarCount              int      `json:"star_count"`
	Status                 Status   `json:"status"`
	PostedMessageID        string   `json:"posted_message_id"`
	PostedChannelID        string   `json:"posted_channel_id"`
	ReplySourceMessageID   *string  `json:"reply_source_message_id,omitempty"`
	ReplyAuthorDisplayName *string  `json:"reply_author_display_name,omitempty"`
	IsForwarded            bool     `json:"is_forwarded"`
}

// Clone returns a deep copy so callers never share slices or pointers with
// cached state.
func (m *CuratedMessage) Clone() *CuratedMessage {
	if m == nil {
		return nil
	}
	c := *m
	c.AttachmentURLs = slices.Clone(m.AttachmentURLs)
	c.AuthorAvatarURL = cloneString(m.AuthorAvatarURL)
	c.ReplySourceMessageID = cloneString(m.ReplySourceMessageID)
	c.ReplyAuthorDisplayName = cloneString(m.ReplyAuthorDisplayName)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// ChannelOverride replaces the global star threshold for one source channel.
type ChannelOverride struct {
	ChannelID string `json:"channel_id"`
	Threshold int    `json:"threshold"`
}
