package cache

import (
	"context"
	"fmt"
	"sort"

	apperrors "starboard-bot/errors"
	"starboard-bot/models"
)

// OverrideStore persists per-channel thresholds.
type OverrideStore interface {
	LoadAllOverrides(ctx context.Context) ([]models.ChannelOverride, error)
	UpsertOverride(ctx context.Context, override models.ChannelOverride) error
	DeleteOverride(ctx context.Context, channelID string) (bool, error)
}

// Overrides mirrors the channel override table in memory. Writes go to the
// store first and only touch memory once they have been committed.
type Overrides struct {
	store OverrideStore
	items *ShardedMap[int]
}

func NewOverrides(store OverrideStore) *Overrides {
	return &Overrides{
		store: store,
		items: NewShardedMap[int](DefaultShards),
	}
}

// Load replaces the in-memory view with the store contents.
func (o *Overrides) Load(ctx context.Context) (int, error) {
	all, err := o.store.LoadAllOverrides(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load channel overrides: %w", err)
	}

	fresh := make(map[string]int, len(all))
	for _, ov := range all {
		fresh[ov.ChannelID] = ov.Threshold
	}

	var gone []string
	o.items.Range(func(channelID string, _ int) bool {
		if _, ok := fresh[channelID]; !ok {
			gone = append(gone, channelID)
		}
		return true
	})
	for _, channelID := range gone {
		o.items.Delete(channelID)
	}
	for channelID, threshold := range fresh {
		o.items.Store(channelID, threshold)
	}
	return len(fresh), nil
}

// Set stores a threshold for channelID.
func (o *Overrides) Set(ctx context.Context, channelID string, threshold int) error {
	if threshold < 1 {
		return apperrors.NewConfigError("threshold", fmt.Sprintf("threshold must be at least 1, got %d", threshold))
	}
	if err := o.store.UpsertOverride(ctx, models.ChannelOverride{ChannelID: channelID, Threshold: threshold}); err != nil {
		return err
	}
	o.items.Store(channelID, threshold)
	return nil
}

// Remove drops the override for channelID. It reports whether one was held.
func (o *Overrides) Remove(ctx context.Context, channelID string) (bool, error) {
	existed, err := o.store.DeleteOverride(ctx, channelID)
	if err != nil {
		return false, err
	}
	held := o.items.Delete(channelID)
	return existed || held, nil
}

// Get returns the override for channelID, if any.
func (o *Overrides) Get(channelID string) (int, bool) {
	return o.items.Load(channelID)
}

// All returns every override sorted by channel id.
func (o *Overrides) All() []models.ChannelOverride {
	var out []models.ChannelOverride
	o.items.Range(func(channelID string, threshold int) bool {
		out = append(out, models.ChannelOverride{ChannelID: channelID, Threshold: threshold})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}
