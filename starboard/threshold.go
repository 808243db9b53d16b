package starboard

// OverrideLookup is the in-memory per-channel threshold table.
type OverrideLookup interface {
	Get(channelID string) (int, bool)
}

// ThresholdResolver picks the star count a channel needs to reach review.
type ThresholdResolver struct {
	overrides OverrideLookup
	fallback  int
}

func NewThresholdResolver(overrides OverrideLookup, fallback int) *ThresholdResolver {
	return &ThresholdResolver{overrides: overrides, fallback: fallback}
}

// Resolve returns the channel override if one is set, else the default.
func (r *ThresholdResolver) Resolve(channelID string) int {
	if r.overrides != nil {
		if n, ok := r.overrides.Get(channelID); ok {
			return n
		}
	}
	return r.fallback
}

func (r *ThresholdResolver) Default() int {
	return r.fallback
}
