package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"quiz-engine/internal/domain"
)

// Engine is the session state machine of one profile:
// loading -> in_progress -> finished, with reset back to loading and logout to closed.
// All state changes happen under mu, so ticks and submissions are applied one at a time.
type Engine struct {
	profileID string
	provider  QuestionProvider
	snapshots *SnapshotManager
	auth      Authenticator
	batch     domain.BatchRequest
	log       logrus.FieldLogger

	// loadMu serialises Start, Reset and Logout so only one provider fetch is in flight.
	loadMu sync.Mutex

	mu          sync.Mutex
	status      domain.Status
	state       *State
	summary     *domain.Summary
	err         error
	runID       string
	subscribers map[chan domain.Update]struct{}
}

// EngineConfig groups the collaborators of an Engine.
type EngineConfig struct {
	ProfileID string
	Provider  QuestionProvider
	Store     KeyValueStore
	Auth      Authenticator
	Batch     domain.BatchRequest
	Logger    logrus.FieldLogger
}

func NewEngine(cfg EngineConfig) *Engine {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("profile", cfg.ProfileID)
	batch := cfg.Batch
	if batch.Amount <= 0 {
		batch = domain.DefaultBatch()
	}
	return &Engine{
		profileID:   cfg.ProfileID,
		provider:    cfg.Provider,
		snapshots:   NewSnapshotManager(cfg.Store, cfg.ProfileID, log),
		auth:        cfg.Auth,
		batch:       batch,
		log:         log,
		status:      domain.StatusLoading,
		subscribers: make(map[chan domain.Update]struct{}),
	}
}

// ProfileID returns the profile the engine plays for.
func (e *Engine) ProfileID() string {
	return e.profileID
}

// Start resumes the persisted session or loads a fresh batch. It is a no-op when a
// session is already running or finished. A provider failure leaves the engine in
// the failed state and is returned unchanged.
func (e *Engine) Start(ctx context.Context) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	return e.load(ctx)
}

func (e *Engine) load(ctx context.Context) error {
	e.mu.Lock()
	switch e.status {
	case domain.StatusInProgress, domain.StatusFinished:
		e.mu.Unlock()
		return nil
	case domain.StatusClosed:
		e.mu.Unlock()
		return domain.ErrSessionClosed
	}
	e.status = domain.StatusLoading
	e.err = nil
	e.broadcastLocked()
	e.mu.Unlock()

	if state, ok := e.snapshots.Load(ctx); ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.begin(state)
		e.log.WithFields(logrus.Fields{
			"session": e.runID,
			"index":   state.CurrentIndex,
			"answers": len(state.Answers),
			"total":   state.Countdown.Total,
		}).Info("resumed quiz session")
		if state.Countdown.Total <= 0 {
			e.finishLocked(ctx)
		}
		e.broadcastLocked()
		return nil
	}

	questions, err := e.fetch(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == domain.StatusClosed {
		return domain.ErrSessionClosed
	}
	if err != nil {
		e.status = domain.StatusFailed
		e.err = err
		e.log.WithError(err).Warn("load questions")
		e.broadcastLocked()
		return err
	}

	state := newState(questions)
	if err := e.snapshots.SaveAll(ctx, state); err != nil {
		e.log.WithError(err).Warn("persist new session")
	}
	e.begin(state)
	e.log.WithFields(logrus.Fields{"session": e.runID, "questions": len(questions)}).Info("started quiz session")
	e.broadcastLocked()
	return nil
}

func (e *Engine) fetch(ctx context.Context) ([]domain.Question, error) {
	questions, err := e.provider.Fetch(ctx, e.batch)
	if err != nil {
		var perr *domain.ProviderError
		if !errors.As(err, &perr) {
			err = domain.NewProviderError(domain.Unavailable, err)
		}
		return nil, err
	}
	playable := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if q.Valid() {
			playable = append(playable, q)
		} else {
			e.log.WithField("question", q.Text).Warn("dropping malformed question")
		}
	}
	if len(playable) == 0 {
		return nil, domain.NewProviderError(domain.Unavailable, errors.New("no playable questions"))
	}
	return playable, nil
}

func (e *Engine) begin(state *State) {
	e.state = state
	e.summary = nil
	e.status = domain.StatusInProgress
	e.runID = uuid.NewString()
}

// SubmitAnswer records selected for the active question and advances.
func (e *Engine) SubmitAnswer(ctx context.Context, selected string) (domain.AnswerRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.activeLocked(); err != nil {
		return domain.AnswerRecord{}, err
	}
	rec, err := e.state.record(selected)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	e.persist(e.snapshots.SaveAnswers(ctx, e.state.Answers))
	e.log.WithFields(logrus.Fields{
		"session": e.runID,
		"index":   e.state.CurrentIndex,
		"correct": rec.IsCorrect,
	}).Debug("answer recorded")

	e.advanceLocked(ctx)
	e.broadcastLocked()
	return rec, nil
}

// Tick applies one second of both countdowns. Ticks outside an in-progress session
// are ignored.
func (e *Engine) Tick(ctx context.Context) Transition {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != domain.StatusInProgress || e.state == nil || e.state.Finished {
		return TransitionNone
	}
	t := e.state.Countdown.Tick()
	switch t {
	case TransitionFinish:
		e.log.WithField("session", e.runID).Info("total time expired")
		e.finishLocked(ctx)
	case TransitionSkip:
		e.persist(e.snapshots.SaveTotal(ctx, e.state.Countdown.Total))
		e.log.WithFields(logrus.Fields{"session": e.runID, "index": e.state.CurrentIndex}).Debug("question timed out")
		e.advanceLocked(ctx)
	default:
		e.persist(e.snapshots.SaveTotal(ctx, e.state.Countdown.Total))
	}
	e.broadcastLocked()
	return t
}

// Run feeds ticks into the engine until ctx is done or the engine is closed.
func (e *Engine) Run(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			e.Tick(ctx)
			if e.Status() == domain.StatusClosed {
				return
			}
		}
	}
}

// Reset discards the current session, persisted or not, and loads a fresh batch.
func (e *Engine) Reset(ctx context.Context) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	e.mu.Lock()
	if e.status == domain.StatusClosed {
		e.mu.Unlock()
		return domain.ErrSessionClosed
	}
	e.snapshots.Clear(ctx)
	e.state = nil
	e.summary = nil
	e.err = nil
	e.status = domain.StatusLoading
	e.log.WithField("session", e.runID).Info("quiz reset")
	e.mu.Unlock()

	return e.load(ctx)
}

// Logout clears the session like Reset, signs the profile out and closes the engine.
func (e *Engine) Logout(ctx context.Context) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	e.mu.Lock()
	e.snapshots.Clear(ctx)
	e.state = nil
	e.summary = nil
	e.err = nil
	e.status = domain.StatusClosed
	e.mu.Unlock()

	var err error
	if e.auth != nil {
		err = e.auth.SignOut(ctx, e.profileID)
	}
	e.log.Info("profile logged out")

	e.mu.Lock()
	e.broadcastLocked()
	e.mu.Unlock()
	return err
}

func (e *Engine) activeLocked() error {
	switch e.status {
	case domain.StatusInProgress:
	case domain.StatusFinished:
		return domain.ErrSessionFinished
	case domain.StatusClosed:
		return domain.ErrSessionClosed
	default:
		return domain.ErrNotInProgress
	}
	if e.state == nil {
		return domain.ErrNotInProgress
	}
	return nil
}

func (e *Engine) advanceLocked(ctx context.Context) {
	if !e.state.advance() {
		e.finishLocked(ctx)
		return
	}
	e.persist(e.snapshots.SaveIndex(ctx, e.state.CurrentIndex))
}

func (e *Engine) finishLocked(ctx context.Context) {
	e.state.Finished = true
	sum := e.state.summary()
	e.summary = &sum
	e.status = domain.StatusFinished
	e.snapshots.Clear(ctx)
	e.log.WithFields(logrus.Fields{
		"session":  e.runID,
		"score":    sum.Score,
		"answered": sum.Answered,
		"skipped":  sum.Skipped,
	}).Info("quiz finished")
}

func (e *Engine) persist(err error) {
	if err != nil {
		e.log.WithError(err).Warn("persist snapshot")
	}
}

// Status returns the current lifecycle state.
func (e *Engine) Status() domain.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Err returns the provider error of a failed load.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Summary returns the results once the session finished.
func (e *Engine) Summary() (domain.Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.summary == nil {
		return domain.Summary{}, false
	}
	return *e.summary, true
}

// View returns the active question for display.
func (e *Engine) View() (domain.View, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != domain.StatusInProgress || e.state == nil {
		return domain.View{}, false
	}
	return e.state.view(), true
}

// Score returns the running number of correct answers.
func (e *Engine) Score() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return 0
	}
	return e.state.Score
}

// Answers returns a copy of the recorded answers keyed by question index.
func (e *Engine) Answers() map[int]domain.AnswerRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[int]domain.AnswerRecord)
	if e.state == nil {
		return out
	}
	for idx, rec := range e.state.Answers {
		out[idx] = rec
	}
	return out
}

// Subscribe returns a channel receiving the latest update after every transition.
// The caller must invoke the returned cancel function to avoid leaks.
func (e *Engine) Subscribe() (<-chan domain.Update, func()) {
	ch := make(chan domain.Update, 8)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	ch <- e.updateLocked()
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) broadcastLocked() {
	update := e.updateLocked()
	for ch := range e.subscribers {
		select {
		case ch <- update:
		default:
			// Drop the oldest update so a slow reader never blocks the engine.
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
}

func (e *Engine) updateLocked() domain.Update {
	update := domain.Update{Status: e.status, Err: e.err}
	if e.status == domain.StatusInProgress && e.state != nil {
		v := e.state.view()
		update.View = &v
	}
	if e.summary != nil {
		sum := *e.summary
		update.Summary = &sum
	}
	return update
}
