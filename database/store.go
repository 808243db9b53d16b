package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	apperrors "starboard-bot/errors"
	"starboard-bot/models"
)

const curatedColumns = `id, author_id, author_display_name, author_avatar_url, content,
    source_channel_id, source_message_id, attachment_urls, star_count, status,
    posted_message_id, posted_channel_id, reply_source_message_id,
    reply_author_display_name, is_forwarded`

// Store is the SQLite-backed persistent store for curated messages and
// channel overrides.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open initialises the database at dbPath and wraps it in a Store.
func Open(dbPath string) (*Store, error) {
	db, err := InitDB(dbPath)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCurated(row rowScanner) (*models.CuratedMessage, error) {
	var (
		rec         models.CuratedMessage
		avatar      sql.NullString
		replySource sql.NullString
		replyAuthor sql.NullString
		attachments string
	)
	err := row.Scan(
		&rec.ID,
		&rec.AuthorID,
		&rec.AuthorDisplayName,
		&avatar,
		&rec.Content,
		&rec.SourceChannelID,
		&rec.SourceMessageID,
		&attachments,
		&rec.StarCount,
		&rec.Status,
		&rec.PostedMessageID,
		&rec.PostedChannelID,
		&replySource,
		&replyAuthor,
		&rec.IsForwarded,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attachments), &rec.AttachmentURLs); err != nil {
		return nil, fmt.Errorf("failed to decode attachments of curated message %d: %w", rec.ID, err)
	}
	rec.AuthorAvatarURL = nullableString(avatar)
	rec.ReplySourceMessageID = nullableString(replySource)
	rec.ReplyAuthorDisplayName = nullableString(replyAuthor)
	return &rec, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// Insert saves a new curated message and returns its id. A second record for
// a source message that is not denied is rejected with a constraint violation.
func (s *Store) Insert(ctx context.Context, rec *models.CuratedMessage) (int64, error) {
	attachments := rec.AttachmentURLs
	if attachments == nil {
		attachments = []string{}
	}
	encoded, err := json.Marshal(attachments)
	if err != nil {
		return 0, fmt.Errorf("failed to encode attachments: %w", err)
	}

	query := `
    INSERT INTO curated_messages (
        author_id, author_display_name, author_avatar_url, content, source_channel_id,
        source_message_id, attachment_urls, star_count, status, posted_message_id,
        posted_channel_id, reply_source_message_id, reply_author_display_name,
        is_forwarded, created_at, updated_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	now := s.now().Unix()
	id, err := retryableDBOperation(ctx, "insert", func() (int64, error) {
		res, err := s.db.ExecContext(ctx, query,
			rec.AuthorID,
			rec.AuthorDisplayName,
			rec.AuthorAvatarURL,
			rec.Content,
			rec.SourceChannelID,
			rec.SourceMessageID,
			string(encoded),
			rec.StarCount,
			rec.Status,
			rec.PostedMessageID,
			rec.PostedChannelID,
			rec.ReplySourceMessageID,
			rec.ReplyAuthorDisplayName,
			rec.IsForwarded,
			now,
			now,
		)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	})
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperrors.NewConstraintViolation(rec.SourceMessageID, err)
		}
		return 0, fmt.Errorf("failed to insert curated message %s: %w", rec.SourceMessageID, err)
	}
	return id, nil
}

func (s *Store) findOne(ctx context.Context, operation, query string, args ...any) (*models.CuratedMessage, error) {
	rec, err := retryableDBOperation(ctx, operation, func() (*models.CuratedMessage, error) {
		rec, err := scanCurated(s.db.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", operation, err)
	}
	return rec, nil
}

// FindByID returns the record with the given id, or nil.
func (s *Store) FindByID(ctx context.Context, id int64) (*models.CuratedMessage, error) {
	return s.findOne(ctx, "find curated message by id",
		`SELECT `+curatedColumns+` FROM curated_messages WHERE id = ?`, id)
}

// FindBySourceMessage returns the active record for a source message. When
// every record for it has been denied the most recent one is returned.
func (s *Store) FindBySourceMessage(ctx context.Context, sourceMessageID string) (*models.CuratedMessage, error) {
	return s.findOne(ctx, "find curated message by source",
		`SELECT `+curatedColumns+` FROM curated_messages
        WHERE source_message_id = ?
        ORDER BY CASE WHEN status = 'denied' THEN 1 ELSE 0 END, id DESC
        LIMIT 1`, sourceMessageID)
}

// FindByPostedMessage returns the record whose queue or highlight post has the
// given message id, or nil.
func (s *Store) FindByPostedMessage(ctx context.Context, postedMessageID string) (*models.CuratedMessage, error) {
	if postedMessageID == "" {
		return nil, nil
	}
	return s.findOne(ctx, "find curated message by posted message",
		`SELECT `+curatedColumns+` FROM curated_messages
        WHERE posted_message_id = ?
        ORDER BY id DESC
        LIMIT 1`, postedMessageID)
}

// UpdateStarCount sets the star count of a record under review. The stored
// value never decreases and is left alone once the record has been reviewed.
func (s *Store) UpdateStarCount(ctx context.Context, id int64, count int) error {
	if count < 0 {
		return fmt.Errorf("star count must not be negative, got %d", count)
	}
	query := `UPDATE curated_messages
        SET star_count = MAX(star_count, ?), updated_at = ?
        WHERE id = ? AND status = 'in_review'`

	err := retryableDBOperationNoReturn(ctx, "update star count", func() error {
		_, err := s.db.ExecContext(ctx, query, count, s.now().Unix(), id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update star count for %d: %w", id, err)
	}
	return nil
}

// TransitionStatus moves a record out of review in a single conditional
// update. A record that is already terminal is left untouched and an
// IllegalTransition error is returned; an unknown id yields NotFound.
func (s *Store) TransitionStatus(ctx context.Context, id int64, to models.Status, postedMessageID, postedChannelID *string) error {
	if to != models.StatusAccepted && to != models.StatusDenied {
		return apperrors.NewIllegalTransition(models.StatusInReview, to)
	}
	if to == models.StatusAccepted && (postedMessageID == nil || postedChannelID == nil) {
		return apperrors.New(apperrors.ErrCodeIllegalTransition, "accepting requires the highlight post").
			WithContext("id", id)
	}
	if to == models.StatusDenied {
		// the posted reference only ever changes on acceptance
		postedMessageID, postedChannelID = nil, nil
	}

	query := `UPDATE curated_messages
        SET status = ?,
            posted_message_id = COALESCE(?, posted_message_id),
            posted_channel_id = COALESCE(?, posted_channel_id),
            updated_at = ?
        WHERE id = ? AND status = 'in_review'`

	affected, err := retryableDBOperation(ctx, "transition status", func() (int64, error) {
		res, err := s.db.ExecContext(ctx, query, to, postedMessageID, postedChannelID, s.now().Unix(), id)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return fmt.Errorf("failed to transition curated message %d to %s: %w", id, to, err)
	}
	if affected == 1 {
		return nil
	}

	current, err := s.currentStatus(ctx, id)
	if err != nil {
		return err
	}
	if current == models.StatusUnknown {
		return apperrors.NewNotFoundError("curated message", strconv.FormatInt(id, 10))
	}
	return apperrors.NewIllegalTransition(current, to)
}

func (s *Store) currentStatus(ctx context.Context, id int64) (models.Status, error) {
	status, err := retryableDBOperation(ctx, "read status", func() (models.Status, error) {
		var status models.Status
		err := s.db.QueryRowContext(ctx, `SELECT status FROM curated_messages WHERE id = ?`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return models.StatusUnknown, nil
		}
		return status, err
	})
	if err != nil {
		return models.StatusUnknown, fmt.Errorf("failed to read status of curated message %d: %w", id, err)
	}
	return status, nil
}
