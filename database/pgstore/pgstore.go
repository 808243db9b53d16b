package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"starboard-bot/database"
	apperrors "starboard-bot/errors"
	"starboard-bot/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type curatedRow struct {
	bun.BaseModel `bun:"table:curated_messages"`

	ID                     int64         `bun:",pk,autoincrement"`
	AuthorID               string        `bun:",notnull"`
	AuthorDisplayName      string        `bun:",notnull,default:''"`
	AuthorAvatarURL        *string
	Content                string        `bun:",notnull,default:''"`
	SourceChannelID        string        `bun:",notnull"`
	SourceMessageID        string        `bun:",notnull"`
	AttachmentURLs         []string      `bun:",array"`
	StarCount              int           `bun:",notnull,default:0"`
	Status                 models.Status `bun:",notnull,type:text"`
	PostedMessageID        string        `bun:",notnull,default:''"`
	PostedChannelID        string        `bun:",notnull,default:''"`
	ReplySourceMessageID   *string
	ReplyAuthorDisplayName *string
	IsForwarded            bool          `bun:",notnull,default:false"`
	CreatedAt              time.Time     `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt              time.Time     `bun:",nullzero,notnull,default:current_timestamp"`
}

type overrideRow struct {
	bun.BaseModel `bun:"table:channel_overrides"`

	ChannelID string `bun:",pk"`
	Threshold int    `bun:",notnull"`
}

func fromModel(m *models.CuratedMessage) *curatedRow {
	return &curatedRow{
		ID:                     m.ID,
		AuthorID:               m.AuthorID,
		AuthorDisplayName:      m.AuthorDisplayName,
		AuthorAvatarURL:        m.AuthorAvatarURL,
		Content:                m.Content,
		SourceChannelID:        m.SourceChannelID,
		SourceMessageID:        m.SourceMessageID,
		AttachmentURLs:         m.AttachmentURLs,
		StarCount:              m.StarCount,
		Status:                 m.Status,
		PostedMessageID:        m.PostedMessageID,
		PostedChannelID:        m.PostedChannelID,
		ReplySourceMessageID:   m.ReplySourceMessageID,
		ReplyAuthorDisplayName: m.ReplyAuthorDisplayName,
		IsForwarded:            m.IsForwarded,
	}
}

func (r *curatedRow) model() *models.CuratedMessage {
	attachments := r.AttachmentURLs
	if attachments == nil {
		attachments = []string{}
	}
	return &models.CuratedMessage{
		ID:                     r.ID,
		AuthorID:               r.AuthorID,
		AuthorDisplayName:      r.AuthorDisplayName,
		AuthorAvatarURL:        r.AuthorAvatarURL,
		Content:                r.Content,
		SourceChannelID:        r.SourceChannelID,
		SourceMessageID:        r.SourceMessageID,
		AttachmentURLs:         attachments,
		StarCount:              r.StarCount,
		Status:                 r.Status,
		PostedMessageID:        r.PostedMessageID,
		PostedChannelID:        r.PostedChannelID,
		ReplySourceMessageID:   r.ReplySourceMessageID,
		ReplyAuthorDisplayName: r.ReplyAuthorDisplayName,
		IsForwarded:            r.IsForwarded,
	}
}

// Postgres is the PostgreSQL-backed persistent store, for deployments that
// run more than one bot instance against shared state.
type Postgres struct {
	bun *bun.DB
}

// Connect connects to the database, pings it to ensure the connection is
// working and creates the schema.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	pg := &Postgres{bun: bun.NewDB(sqlDB, pgdialect.New())}
	if err := pg.createSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

func (pg *Postgres) createSchema(ctx context.Context) error {
	if _, err := pg.bun.NewCreateTable().Model((*curatedRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create curated_messages: %w", err)
	}
	if _, err := pg.bun.NewCreateIndex().
		Model((*curatedRow)(nil)).
		Unique().
		IfNotExists().
		Index("idx_curated_messages_active_source").
		Column("source_message_id").
		Where("status <> 'denied'").
		Exec(ctx); err != nil {
		return fmt.Errorf("create active source index: %w", err)
	}
	if _, err := pg.bun.NewCreateIndex().
		Model((*curatedRow)(nil)).
		IfNotExists().
		Index("idx_curated_messages_posted").
		Column("posted_message_id").
		Exec(ctx); err != nil {
		return fmt.Errorf("create posted index: %w", err)
	}
	if _, err := pg.bun.NewCreateTable().Model((*overrideRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create channel_overrides: %w", err)
	}
	return nil
}

func (pg *Postgres) Ping(ctx context.Context) error {
	return pg.bun.PingContext(ctx)
}

func (pg *Postgres) Close() error {
	return pg.bun.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}

// Insert inserts a curated message and returns its id.
func (pg *Postgres) Insert(ctx context.Context, rec *models.CuratedMessage) (int64, error) {
	row := fromModel(rec)
	row.ID = 0
	id, err := database.Retry(ctx, "insert", func() (int64, error) {
		if _, err := pg.bun.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
			return 0, err
		}
		return row.ID, nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperrors.NewConstraintViolation(rec.SourceMessageID, err)
		}
		return 0, fmt.Errorf("insert: %w", err)
	}
	return id, nil
}

func (pg *Postgres) selectOne(ctx context.Context, operation string, build func(*bun.SelectQuery) *bun.SelectQuery) (*models.CuratedMessage, error) {
	rec, err := database.Retry(ctx, operation, func() (*models.CuratedMessage, error) {
		var row curatedRow
		err := build(pg.bun.NewSelect().Model(&row)).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return row.model(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return rec, nil
}

func (pg *Postgres) FindByID(ctx context.Context, id int64) (*models.CuratedMessage, error) {
	return pg.selectOne(ctx, "find by id", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", id)
	})
}

func (pg *Postgres) FindBySourceMessage(ctx context.Context, sourceMessageID string) (*models.CuratedMessage, error) {
	return pg.selectOne(ctx, "find by source", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("source_message_id = ?", sourceMessageID).
			OrderExpr("CASE WHEN status = 'denied' THEN 1 ELSE 0 END, id DESC")
	})
}

func (pg *Postgres) FindByPostedMessage(ctx context.Context, postedMessageID string) (*models.CuratedMessage, error) {
	if postedMessageID == "" {
		return nil, nil
	}
	return pg.selectOne(ctx, "find by posted message", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("posted_message_id = ?", postedMessageID).Order("id DESC")
	})
}

// UpdateStarCount raises the star count of a record under review.
func (pg *Postgres) UpdateStarCount(ctx context.Context, id int64, count int) error {
	if count < 0 {
		return fmt.Errorf("star count must not be negative, got %d", count)
	}
	_, err := database.Retry(ctx, "update star count", func() (sql.Result, error) {
		return pg.bun.NewUpdate().
			Model((*curatedRow)(nil)).
			Set("star_count = GREATEST(star_count, ?)", count).
			Set("updated_at = current_timestamp").
			Where("id = ?", id).
			Where("status = ?", models.StatusInReview.String()).
			Exec(ctx)
	})
	if err != nil {
		return fmt.Errorf("update star count: %w", err)
	}
	return nil
}

// TransitionStatus moves a record out of review with one conditional update.
func (pg *Postgres) TransitionStatus(ctx context.Context, id int64, to models.Status, postedMessageID, postedChannelID *string) error {
	if to != models.StatusAccepted && to != models.StatusDenied {
		return apperrors.NewIllegalTransition(models.StatusInReview, to)
	}
	if to == models.StatusAccepted && (postedMessageID == nil || postedChannelID == nil) {
		return apperrors.New(apperrors.ErrCodeIllegalTransition, "accepting requires the highlight post").
			WithContext("id", id)
	}
	if to == models.StatusDenied {
		postedMessageID, postedChannelID = nil, nil
	}

	affected, err := database.Retry(ctx, "transition status", func() (int64, error) {
		res, err := pg.bun.NewUpdate().
			Model((*curatedRow)(nil)).
			Set("status = ?", to.String()).
			Set("posted_message_id = COALESCE(?, posted_message_id)", postedMessageID).
			Set("posted_channel_id = COALESCE(?, posted_channel_id)", postedChannelID).
			Set("updated_at = current_timestamp").
			Where("id = ?", id).
			Where("status = ?", models.StatusInReview.String()).
			Exec(ctx)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return fmt.Errorf("transition %d to %s: %w", id, to, err)
	}
	if affected == 1 {
		return nil
	}

	current, err := pg.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return apperrors.NewNotFoundError("curated message", strconv.FormatInt(id, 10))
	}
	return apperrors.NewIllegalTransition(current.Status, to)
}

func (pg *Postgres) LoadAllOverrides(ctx context.Context) ([]models.ChannelOverride, error) {
	out, err := database.Retry(ctx, "load overrides", func() ([]models.ChannelOverride, error) {
		var rows []overrideRow
		if err := pg.bun.NewSelect().Model(&rows).Order("channel_id").Scan(ctx); err != nil {
			return nil, err
		}
		out := make([]models.ChannelOverride, 0, len(rows))
		for _, r := range rows {
			out = append(out, models.ChannelOverride{ChannelID: r.ChannelID, Threshold: r.Threshold})
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	return out, nil
}

func (pg *Postgres) UpsertOverride(ctx context.Context, override models.ChannelOverride) error {
	if override.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1, got %d", override.Threshold)
	}
	row := &overrideRow{ChannelID: override.ChannelID, Threshold: override.Threshold}
	_, err := database.Retry(ctx, "upsert override", func() (sql.Result, error) {
		return pg.bun.NewInsert().
			Model(row).
			On("CONFLICT (channel_id) DO UPDATE").
			Set("threshold = EXCLUDED.threshold").
			Exec(ctx)
	})
	if err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}

func (pg *Postgres) DeleteOverride(ctx context.Context, channelID string) (bool, error) {
	affected, err := database.Retry(ctx, "delete override", func() (int64, error) {
		res, err := pg.bun.NewDelete().
			Model((*overrideRow)(nil)).
			Where("channel_id = ?", channelID).
			Exec(ctx)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return false, fmt.Errorf("delete override: %w", err)
	}
	return affected > 0, nil
}
