package memory

import (
	"sync"

	"quiz-engine/internal/app"
)

// EngineRegistry is an in-memory implementation of app.EngineRepository.
type EngineRegistry struct {
	mu      sync.RWMutex
	engines map[string]*app.Engine
}

func NewEngineRegistry() *EngineRegistry {
	return &EngineRegistry{
		engines: make(map[string]*app.Engine),
	}
}

func (r *EngineRegistry) GetOrCreate(profileID string, create func() *app.Engine) (*app.Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if engine, ok := r.engines[profileID]; ok {
		return engine, false
	}
	engine := create()
	r.engines[profileID] = engine
	return engine, true
}

func (r *EngineRegistry) Get(profileID string) (*app.Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[profileID]
	return engine, ok
}

func (r *EngineRegistry) Delete(profileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, profileID)
}
