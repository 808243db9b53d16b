package starboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "starboard-bot/errors"
	"starboard-bot/metrics"
	"starboard-bot/models"

	"github.com/sirupsen/logrus"
)

// cleanupTimeout bounds guard release and retraction, which run on a context
// detached from the (possibly expired) review deadline.
const cleanupTimeout = 5 * time.Second

// Authorizer decides who may review queued messages.
type Authorizer interface {
	IsReviewer(userID string) bool
}

// Guard marks a message as being handled so concurrent reviews of it collapse
// into one.
type Guard interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Publisher posts curated messages to Discord.
type Publisher interface {
	// PostToQueue posts rec to the review queue with its decision buttons.
	PostToQueue(ctx context.Context, rec *models.CuratedMessage) (PostedRef, error)
	// PostHighlight posts rec to the public highlight channel.
	PostHighlight(ctx context.Context, rec *models.CuratedMessage) (PostedRef, error)
	// Retract deletes a post that could not be committed.
	Retract(ctx context.Context, ref PostedRef) error
}

// RecordCache is the read and write path for curated messages.
type RecordCache interface {
	Get(ctx context.Context, messageID string) (*models.CuratedMessage, error)
	GetByID(ctx context.Context, id int64) (*models.CuratedMessage, error)
	Evict(id int64)
}

// TransitionStore commits status changes.
type TransitionStore interface {
	TransitionStatus(ctx context.Context, id int64, to models.Status, postedMessageID, postedChannelID *string) error
}

// ResultKind is what a handled review did.
type ResultKind uint8

const (
	ResultAccepted ResultKind = iota + 1
	ResultDenied
	// ResultInFlight means another review of the same message is running and
	// this one was dropped without touching anything.
	ResultInFlight
)

func (k ResultKind) String() string {
	switch k {
	case ResultAccepted:
		return "accepted"
	case ResultDenied:
		return "denied"
	case ResultInFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// ReviewRequest is one button press by a reviewer.
type ReviewRequest struct {
	ReviewerID string
	// TargetMessageID is the queue message the button belongs to.
	TargetMessageID string
	Outcome         Outcome
}

type Result struct {
	Kind ResultKind
	// Record is the committed state. Nil for ResultInFlight.
	Record *models.CuratedMessage
}

// ReviewService handles reviewer decisions end to end.
type ReviewService struct {
	auth      Authorizer
	guard     Guard
	cache     RecordCache
	store     TransitionStore
	publisher Publisher
	timeout   time.Duration
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
}

type ReviewServiceConfig struct {
	Authorizer Authorizer
	Guard      Guard
	Cache      RecordCache
	Store      TransitionStore
	Publisher  Publisher
	// Timeout bounds one review, including the highlight post. Zero means no
	// bound beyond the caller's context.
	Timeout time.Duration
	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
}

func NewReviewService(cfg ReviewServiceConfig) *ReviewService {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ReviewService{
		auth:      cfg.Authorizer,
		guard:     cfg.Guard,
		cache:     cfg.Cache,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		timeout:   cfg.Timeout,
		log:       logger.WithField("component", "review"),
		metrics:   cfg.Metrics,
	}
}

// Handle applies a reviewer's decision. Only one review per target runs at a
// time; a concurrent one returns ResultInFlight with a nil error. Accepting
// posts the highlight before anything is committed, and a failed commit
// retracts that post so no partial state is left behind.
func (s *ReviewService) Handle(ctx context.Context, req ReviewRequest) (res Result, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Review(req.Outcome.String(), resultLabel(res, err), time.Since(started).Seconds())
	}()

	log := s.log.WithFields(logrus.Fields{
		"reviewer": req.ReviewerID,
		"target":   req.TargetMessageID,
		"outcome":  req.Outcome.String(),
	})

	if !s.auth.IsReviewer(req.ReviewerID) {
		log.Info("review rejected: not an allowed reviewer")
		return Result{}, apperrors.NewUnauthorizedError(req.ReviewerID)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	acquired, err := s.guard.TryAcquire(ctx, req.TargetMessageID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to acquire review guard: %w", err)
	}
	if !acquired {
		s.metrics.GuardContention()
		log.Debug("review already in flight, ignoring")
		return Result{Kind: ResultInFlight}, nil
	}
	defer s.release(ctx, req.TargetMessageID, log)

	rec, err := s.cache.Get(ctx, req.TargetMessageID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve curated message: %w", err)
	}
	if rec == nil {
		return Result{}, apperrors.NewNotFoundError("curated message", req.TargetMessageID)
	}
	log = log.WithField("curated_id", rec.ID)

	if err := CanDecide(rec.Status, req.Outcome); err != nil {
		log.WithField("status", rec.Status.String()).Info("review conflicts with current status")
		return Result{}, err
	}

	var posted *PostedRef
	if req.Outcome == OutcomeAccept {
		ref, err := s.publisher.PostHighlight(ctx, rec)
		if err != nil {
			log.WithError(err).Warn("highlight post failed, leaving record in review")
			return Result{}, asPublishError(err)
		}
		posted = &ref
	}

	transition, err := Decide(rec.Status, req.Outcome, posted)
	if err != nil {
		s.retract(ctx, posted, log)
		return Result{}, err
	}

	var postedMessageID, postedChannelID *string
	if transition.Posted != nil {
		postedMessageID = &transition.Posted.MessageID
		postedChannelID = &transition.Posted.ChannelID
	}
	if err := s.store.TransitionStatus(ctx, rec.ID, transition.To, postedMessageID, postedChannelID); err != nil {
		s.retract(ctx, posted, log)
		if apperrors.Is(err, apperrors.ErrCodeIllegalTransition) || apperrors.Is(err, apperrors.ErrCodeNotFound) {
			// The store moved on without us; drop what we cached.
			s.cache.Evict(rec.ID)
		}
		log.WithError(err).Warn("failed to commit review")
		return Result{}, err
	}

	// rec was read before the highlight post and its star count may have moved
	// since; refill from the committed row instead of caching rec.
	s.cache.Evict(rec.ID)
	committed, err := s.cache.GetByID(ctx, rec.ID)
	if err != nil || committed == nil {
		if err != nil {
			log.WithError(err).Warn("failed to reload committed review")
		}
		committed = transition.Apply(rec)
	}

	kind := ResultDenied
	if committed.Status == models.StatusAccepted {
		kind = ResultAccepted
	}
	log.WithField("status", committed.Status.String()).Info("review committed")
	return Result{Kind: kind, Record: committed}, nil
}

func (s *ReviewService) release(ctx context.Context, key string, log logrus.FieldLogger) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := s.guard.Release(releaseCtx, key); err != nil {
		log.WithError(err).Error("failed to release review guard")
	}
}

func (s *ReviewService) retract(ctx context.Context, posted *PostedRef, log logrus.FieldLogger) {
	if posted == nil {
		return
	}
	retractCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := s.publisher.Retract(retractCtx, *posted); err != nil {
		log.WithError(err).WithField("posted_message", posted.MessageID).Error("failed to retract highlight post")
	}
}

func asPublishError(err error) error {
	if apperrors.GetCode(err) != apperrors.ErrCodeInternalError {
		return err
	}
	return apperrors.NewPublishError("", err)
}

func resultLabel(res Result, err error) string {
	if err != nil {
		return strings.ToLower(string(apperrors.GetCode(err)))
	}
	return res.Kind.String()
}
