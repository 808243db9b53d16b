package starboard

import (
	"context"
	"fmt"

	apperrors "starboard-bot/errors"
	"starboard-bot/metrics"
	"starboard-bot/models"

	"github.com/sirupsen/logrus"
)

// CurationCache is what the curator needs from the cache.
type CurationCache interface {
	Get(ctx context.Context, messageID string) (*models.CuratedMessage, error)
	GetByID(ctx context.Context, id int64) (*models.CuratedMessage, error)
	UpdateStarCount(ctx context.Context, id int64, count int) error
}

// CurationStore creates new curated records.
type CurationStore interface {
	Insert(ctx context.Context, rec *models.CuratedMessage) (int64, error)
}

// CurationOutcome is what observing a star count did.
type CurationOutcome uint8

const (
	// CurationBelowThreshold means the message has not earned review yet.
	CurationBelowThreshold CurationOutcome = iota + 1
	// CurationQueued means a new record was created and posted to the queue.
	CurationQueued
	// CurationCounted means an existing record under review got a new count.
	CurationCounted
	// CurationAlreadyCurated means the message already has an active record,
	// either reviewed or created concurrently.
	CurationAlreadyCurated
)

func (o CurationOutcome) String() string {
	switch o {
	case CurationBelowThreshold:
		return "below_threshold"
	case CurationQueued:
		return "queued"
	case CurationCounted:
		return "counted"
	case CurationAlreadyCurated:
		return "already_curated"
	default:
		return "unknown"
	}
}

// Curator turns star counts into curated records. It never takes the review
// guard: a record that does not exist yet cannot be under review, and the
// store's uniqueness constraint settles concurrent creation.
type Curator struct {
	cache      CurationCache
	store      CurationStore
	publisher  Publisher
	thresholds *ThresholdResolver
	log        logrus.FieldLogger
	metrics    *metrics.Metrics
}

func NewCurator(cache CurationCache, store CurationStore, publisher Publisher, thresholds *ThresholdResolver, logger logrus.FieldLogger, m *metrics.Metrics) *Curator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Curator{
		cache:      cache,
		store:      store,
		publisher:  publisher,
		thresholds: thresholds,
		log:        logger.WithField("component", "curator"),
		metrics:    m,
	}
}

// Observe records that snapshot's source message now has snapshot.StarCount
// distinct stars. snapshot carries the message content as it is right now and
// is only persisted if this observation creates the record.
func (c *Curator) Observe(ctx context.Context, snapshot *models.CuratedMessage) (CurationOutcome, error) {
	outcome, err := c.observe(ctx, snapshot)
	if err != nil {
		c.metrics.ReactionProcessed("error")
		return 0, err
	}
	c.metrics.ReactionProcessed(outcome.String())
	return outcome, nil
}

func (c *Curator) observe(ctx context.Context, snapshot *models.CuratedMessage) (CurationOutcome, error) {
	log := c.log.WithFields(logrus.Fields{
		"source_message": snapshot.SourceMessageID,
		"source_channel": snapshot.SourceChannelID,
		"stars":          snapshot.StarCount,
	})

	existing, err := c.cache.Get(ctx, snapshot.SourceMessageID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up curated message: %w", err)
	}
	if existing != nil && existing.SourceMessageID == snapshot.SourceMessageID {
		if existing.Status != models.StatusInReview {
			return CurationAlreadyCurated, nil
		}
		if snapshot.StarCount > existing.StarCount {
			if err := c.cache.UpdateStarCount(ctx, existing.ID, snapshot.StarCount); err != nil {
				return 0, err
			}
		}
		return CurationCounted, nil
	}

	threshold := c.thresholds.Resolve(snapshot.SourceChannelID)
	if snapshot.StarCount < threshold {
		return CurationBelowThreshold, nil
	}

	rec := snapshot.Clone()
	rec.ID = 0
	rec.Status = models.StatusInReview

	ref, err := c.publisher.PostToQueue(ctx, rec)
	if err != nil {
		return 0, asPublishError(err)
	}
	rec.PostedMessageID = ref.MessageID
	rec.PostedChannelID = ref.ChannelID

	id, err := c.store.Insert(ctx, rec)
	if err != nil {
		if retractErr := c.publisher.Retract(ctx, ref); retractErr != nil {
			log.WithError(retractErr).Error("failed to retract duplicate queue post")
		}
		if apperrors.Is(err, apperrors.ErrCodeConstraintViolation) {
			log.Debug("message was curated concurrently")
			return CurationAlreadyCurated, nil
		}
		return 0, err
	}
	// The queue post is already live, so a review may have committed since the
	// insert. Read through instead of installing rec, which never replaces a
	// newer entry.
	if _, err := c.cache.GetByID(ctx, id); err != nil {
		log.WithError(err).Warn("failed to warm cache with queued message")
	}

	log.WithFields(logrus.Fields{"curated_id": id, "threshold": threshold}).Info("message queued for review")
	return CurationQueued, nil
}
