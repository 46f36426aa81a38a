package app

import (
	"context"

	"quiz-engine/internal/domain"
)

// QuestionProvider supplies an ordered batch of questions or a *domain.ProviderError.
type QuestionProvider interface {
	Fetch(ctx context.Context, req domain.BatchRequest) ([]domain.Question, error)
}

// KeyValueStore is the durable storage behind session snapshots (memory, Redis, SQLite).
// Writes to different keys are independent; there is no transaction across keys.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Authenticator is the identity collaborator consulted before a profile may play.
type Authenticator interface {
	IsAuthenticated(ctx context.Context, profileID string) bool
	SignOut(ctx context.Context, profileID string) error
}

// EngineRepository keeps the live engine of every connected profile.
type EngineRepository interface {
	GetOrCreate(profileID string, create func() *Engine) (*Engine, bool)
	Get(profileID string) (*Engine, bool)
	Delete(profileID string)
}
