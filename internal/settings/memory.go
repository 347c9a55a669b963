package settings

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemoryStore keeps settings in memory for tests and throwaway runs.
type MemoryStore struct {
	mu sync.Mutex
	s  *Settings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == nil {
		return Defaults(), nil
	}
	return clone(*m.s).WithDefaults(), nil
}

func (m *MemoryStore) Save(ctx context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := clone(s)
	m.s = &c
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// clone copies the maps so callers cannot mutate stored state.
func clone(s Settings) Settings {
	s.ModelByProvider = maps.Clone(s.ModelByProvider)
	if s.ModelsCache != nil {
		mc := maps.Clone(s.ModelsCache)
		for k, v := range mc {
			mc[k] = slices.Clone(v)
		}
		s.ModelsCache = mc
	}
	return s
}
