package starboard

import (
	apperrors "starboard-bot/errors"
	"starboard-bot/models"
)

// Outcome is a reviewer's decision on a queued message.
type Outcome uint8

const (
	OutcomeAccept Outcome = iota + 1
	OutcomeDeny
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccept:
		return "accept"
	case OutcomeDeny:
		return "deny"
	default:
		return "unknown"
	}
}

// Target is the status a record ends up in when the outcome is applied.
func (o Outcome) Target() models.Status {
	switch o {
	case OutcomeAccept:
		return models.StatusAccepted
	case OutcomeDeny:
		return models.StatusDenied
	default:
		return models.StatusUnknown
	}
}

// PostedRef identifies a message posted by the bot.
type PostedRef struct {
	MessageID string
	ChannelID string
}

// Transition is a validated status change.
type Transition struct {
	From   models.Status
	To     models.Status
	Posted *PostedRef
}

// Apply returns a copy of rec with the transition applied. The star count is
// left as it was, which freezes it.
func (t Transition) Apply(rec *models.CuratedMessage) *models.CuratedMessage {
	next := rec.Clone()
	next.Status = t.To
	if t.Posted != nil {
		next.PostedMessageID = t.Posted.MessageID
		next.PostedChannelID = t.Posted.ChannelID
	}
	return next
}

// CanDecide checks whether outcome may be applied to a record in status
// current, before anything is posted.
func CanDecide(current models.Status, outcome Outcome) error {
	target := outcome.Target()
	if target == models.StatusUnknown || current != models.StatusInReview {
		return apperrors.NewIllegalTransition(current, target)
	}
	return nil
}

// Decide validates outcome against current and returns the transition to
// commit. Accepting needs the highlight post; denying takes none.
func Decide(current models.Status, outcome Outcome, posted *PostedRef) (Transition, error) {
	if err := CanDecide(current, outcome); err != nil {
		return Transition{}, err
	}

	switch outcome {
	case OutcomeAccept:
		if posted == nil || posted.MessageID == "" || posted.ChannelID == "" {
			return Transition{}, apperrors.New(apperrors.ErrCodeIllegalTransition, "accepting requires the highlight post")
		}
		ref := *posted
		return Transition{From: current, To: models.StatusAccepted, Posted: &ref}, nil
	default:
		return Transition{From: current, To: models.StatusDenied}, nil
	}
}
