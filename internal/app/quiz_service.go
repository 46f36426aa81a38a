package app

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"quiz-engine/internal/domain"
)

// TickerFunc starts a ticker and returns its channel and a stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

// RealTicker is the TickerFunc backed by time.NewTicker.
func RealTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Settings tunes the service.
type Settings struct {
	Batch        domain.BatchRequest
	TickInterval time.Duration
}

// QuizService hosts one engine per connected profile and drives its timers.
type QuizService struct {
	engines  EngineRepository
	provider QuestionProvider
	store    KeyValueStore
	auth     Authenticator
	settings Settings
	ticker   TickerFunc
	log      logrus.FieldLogger

	mu   sync.Mutex
	runs map[string]*engineRun
}

type engineRun struct {
	engine *Engine
	cancel context.CancelFunc
	refs   int
}

func NewQuizService(engines EngineRepository, provider QuestionProvider, store KeyValueStore, auth Authenticator, settings Settings, log logrus.FieldLogger) *QuizService {
	if settings.TickInterval <= 0 {
		settings.TickInterval = time.Second
	}
	if settings.Batch.Amount <= 0 {
		settings.Batch = domain.DefaultBatch()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &QuizService{
		engines:  engines,
		provider: provider,
		store:    store,
		auth:     auth,
		settings: settings,
		ticker:   RealTicker,
		log:      log,
		runs:     make(map[string]*engineRun),
	}
}

// WithTicker replaces the tick source; tests use it to drive time by hand.
func (s *QuizService) WithTicker(ticker TickerFunc) *QuizService {
	s.ticker = ticker
	return s
}

// Connect attaches a client to the profile's engine, creating and starting it when
// needed. Every Connect that returns an engine must be paired with Release. A provider failure
// is returned together with the engine so the caller can show it.
func (s *QuizService) Connect(ctx context.Context, profileID string) (*Engine, error) {
	if s.auth != nil && !s.auth.IsAuthenticated(ctx, profileID) {
		return nil, domain.ErrUnauthenticated
	}

	// Lookup, ref count and tick loop start share one critical section with Release,
	// so a client never holds an engine that the registry already dropped.
	s.mu.Lock()
	engine, _ := s.engines.GetOrCreate(profileID, func() *Engine {
		return NewEngine(EngineConfig{
			ProfileID: profileID,
			Provider:  s.provider,
			Store:     s.store,
			Auth:      s.auth,
			Batch:     s.settings.Batch,
			Logger:    s.log,
		})
	})
	s.acquireLocked(engine)
	s.mu.Unlock()

	return engine, engine.Start(ctx)
}

// SubmitAnswer records an answer for the profile's active question.
func (s *QuizService) SubmitAnswer(ctx context.Context, profileID, answer string) (domain.AnswerRecord, error) {
	engine, ok := s.engines.Get(profileID)
	if !ok {
		return domain.AnswerRecord{}, domain.ErrNotInProgress
	}
	return engine.SubmitAnswer(ctx, answer)
}

// Restart throws away the profile's session and loads a new one.
func (s *QuizService) Restart(ctx context.Context, profileID string) error {
	engine, ok := s.engines.Get(profileID)
	if !ok {
		return domain.ErrNotInProgress
	}
	return engine.Reset(ctx)
}

// Logout closes the profile's engine, clears its snapshot and signs it out.
func (s *QuizService) Logout(ctx context.Context, profileID string) error {
	engine, ok := s.engines.Get(profileID)
	if !ok {
		engine = NewEngine(EngineConfig{ProfileID: profileID, Store: s.store, Auth: s.auth, Logger: s.log})
	}
	err := engine.Logout(ctx)

	s.mu.Lock()
	s.stopLocked(profileID, engine)
	s.mu.Unlock()
	return err
}

// Release detaches a client. The last release stops the timers and drops the engine;
// its snapshot stays in the store so the next Connect resumes it.
func (s *QuizService) Release(profileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[profileID]
	if !ok {
		return
	}
	run.refs--
	if run.refs <= 0 {
		s.stopLocked(profileID, run.engine)
	}
}

// Close stops every running engine.
func (s *QuizService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, run := range s.runs {
		s.stopLocked(id, run.engine)
	}
}

func (s *QuizService) acquireLocked(engine *Engine) {
	if run, ok := s.runs[engine.ProfileID()]; ok {
		if run.engine == engine {
			run.refs++
			return
		}
		run.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.runs[engine.ProfileID()] = &engineRun{engine: engine, cancel: cancel, refs: 1}

	ticks, stopTicker := s.ticker(s.settings.TickInterval)
	go func() {
		defer stopTicker()
		engine.Run(ctx, ticks)
	}()
}

// stopLocked cancels the tick loop of engine and unregisters it. Entries that already
// point at a different engine are left alone.
func (s *QuizService) stopLocked(profileID string, engine *Engine) {
	if run, ok := s.runs[profileID]; ok && run.engine == engine {
		run.cancel()
		delete(s.runs, profileID)
	}
	if current, ok := s.engines.Get(profileID); ok && current == engine {
		s.engines.Delete(profileID)
	}
}
