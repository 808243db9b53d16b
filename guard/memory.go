package guard

import (
	"context"

	"starboard-bot/cache"
)

// Memory is an in-process guard. Marks live only as long as the process.
type Memory struct {
	held *cache.ShardedMap[struct{}]
}

func NewMemory() *Memory {
	return &Memory{held: cache.NewShardedMap[struct{}](cache.DefaultShards)}
}

// TryAcquire marks key as being handled. It returns false if another caller
// already holds the mark.
func (m *Memory) TryAcquire(_ context.Context, key string) (bool, error) {
	_, loaded := m.held.LoadOrStore(key, struct{}{})
	return !loaded, nil
}

// Release clears the mark for key. Releasing an unheld key is a no-op.
func (m *Memory) Release(_ context.Context, key string) error {
	m.held.Delete(key)
	return nil
}

// Held reports whether key is currently marked.
func (m *Memory) Held(key string) bool {
	_, ok := m.held.Load(key)
	return ok
}
