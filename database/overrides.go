package database

import (
	"context"
	"fmt"

	"starboard-bot/models"
)

// LoadAllOverrides returns every channel override.
func (s *Store) LoadAllOverrides(ctx context.Context) ([]models.ChannelOverride, error) {
	overrides, err := retryableDBOperation(ctx, "load overrides", func() ([]models.ChannelOverride, error) {
		rows, err := s.db.QueryContext(ctx, `SELECT channel_id, threshold FROM channel_overrides ORDER BY channel_id`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []models.ChannelOverride
		for rows.Next() {
			var ov models.ChannelOverride
			if err := rows.Scan(&ov.ChannelID, &ov.Threshold); err != nil {
				return nil, err
			}
			out = append(out, ov)
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load channel overrides: %w", err)
	}
	return overrides, nil
}

// UpsertOverride creates or replaces the threshold for a channel.
func (s *Store) UpsertOverride(ctx context.Context, override models.ChannelOverride) error {
	if override.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1, got %d", override.Threshold)
	}
	query := `INSERT INTO channel_overrides (channel_id, threshold) VALUES (?, ?)
        ON CONFLICT (channel_id) DO UPDATE SET threshold = excluded.threshold`

	err := retryableDBOperationNoReturn(ctx, "upsert override", func() error {
		_, err := s.db.ExecContext(ctx, query, override.ChannelID, override.Threshold)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert override for channel %s: %w", override.ChannelID, err)
	}
	return nil
}

// DeleteOverride removes the override for a channel and reports whether one
// existed.
func (s *Store) DeleteOverride(ctx context.Context, channelID string) (bool, error) {
	affected, err := retryableDBOperation(ctx, "delete override", func() (int64, error) {
		res, err := s.db.ExecContext(ctx, `DELETE FROM channel_overrides WHERE channel_id = ?`, channelID)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete override for channel %s: %w", channelID, err)
	}
	return affected > 0, nil
}
