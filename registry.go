package pbrsky

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// SkyRegistry tracks the skies of a scene, for example one per view or reflection capture.
// Every sky owns its own tables and change cache.
type SkyRegistry struct {
	mu    sync.Mutex
	skies map[uuid.UUID]*SkyState
}

func NewSkyRegistry() *SkyRegistry {
	return &SkyRegistry{skies: make(map[uuid.UUID]*SkyState)}
}

func (r *SkyRegistry) Add(s *SkyState) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skies[s.ID()] = s
	return s.ID()
}

func (r *SkyRegistry) Get(id uuid.UUID) (*SkyState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.skies[id]
	return s, ok
}

// Remove closes and forgets a sky. Unknown ids are ignored.
func (r *SkyRegistry) Remove(id uuid.UUID) {
	r.mu.Lock()
	s, ok := r.skies[id]
	delete(r.skies, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (r *SkyRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.skies)
}

// Each visits skies in id order until fn returns false.
func (r *SkyRegistry) Each(fn func(id uuid.UUID, s *SkyState) bool) {
	r.mu.Lock()
	ids := make([]uuid.UUID, 0, len(r.skies))
	for id := range r.skies {
		ids = append(ids, id)
	}
	skies := make([]*SkyState, 0, len(ids))
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		skies = append(skies, r.skies[id])
	}
	r.mu.Unlock()

	for i, s := range skies {
		if !fn(ids[i], s) {
			return
		}
	}
}

func (r *SkyRegistry) CloseAll() {
	r.mu.Lock()
	skies := r.skies
	r.skies = make(map[uuid.UUID]*SkyState)
	r.mu.Unlock()
	for _, s := range skies {
		s.Close()
	}
}
