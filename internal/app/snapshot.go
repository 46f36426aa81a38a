package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"quiz-engine/internal/domain"
)

// Snapshot keys, relative to the profile namespace.
const (
	KeyQuestions = "questions"
	KeyAnswers   = "userAnswers"
	KeyIndex     = "currentQuestionIndex"
	KeyTotal     = "totalTimeLeft"
	// KeyFinished is written before the data keys are cleared so that a finished
	// session interrupted mid-clear is discarded instead of resumed.
	KeyFinished = "quizFinished"
)

// SnapshotManager mirrors session state into a KeyValueStore and rebuilds it on start.
type SnapshotManager struct {
	store     KeyValueStore
	namespace string
	log       logrus.FieldLogger
}

func NewSnapshotManager(store KeyValueStore, profileID string, log logrus.FieldLogger) *SnapshotManager {
	return &SnapshotManager{
		store:     store,
		namespace: "quiz:" + profileID + ":",
		log:       log,
	}
}

// Key returns the store key of a snapshot entry.
func (m *SnapshotManager) Key(name string) string {
	return m.namespace + name
}

func (m *SnapshotManager) SaveQuestions(ctx context.Context, questions []domain.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	return m.set(ctx, KeyQuestions, string(data))
}

func (m *SnapshotManager) SaveAnswers(ctx context.Context, answers map[int]domain.AnswerRecord) error {
	data, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	return m.set(ctx, KeyAnswers, string(data))
}

func (m *SnapshotManager) SaveIndex(ctx context.Context, index int) error {
	return m.set(ctx, KeyIndex, strconv.Itoa(index))
}

func (m *SnapshotManager) SaveTotal(ctx context.Context, seconds int) error {
	return m.set(ctx, KeyTotal, strconv.Itoa(seconds))
}

// SaveAll writes every snapshot key for a freshly loaded session.
func (m *SnapshotManager) SaveAll(ctx context.Context, s *State) error {
	if err := m.SaveQuestions(ctx, s.Questions); err != nil {
		return err
	}
	if err := m.SaveAnswers(ctx, s.Answers); err != nil {
		return err
	}
	if err := m.SaveIndex(ctx, s.CurrentIndex); err != nil {
		return err
	}
	return m.SaveTotal(ctx, s.Countdown.Total)
}

// Load reconstructs an in-progress session. It reports false when there is nothing
// to resume. Corrupt optional keys fall back to their defaults.
func (m *SnapshotManager) Load(ctx context.Context) (*State, bool) {
	if _, ok := m.get(ctx, KeyFinished); ok {
		m.log.Warn("discarding snapshot of a finished session")
		m.Clear(ctx)
		return nil, false
	}

	raw, ok := m.get(ctx, KeyQuestions)
	if !ok {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal([]byte(raw), &questions); err != nil || len(questions) == 0 {
		m.corrupt(KeyQuestions, err)
		return nil, false
	}

	state := newState(questions)

	if raw, ok := m.get(ctx, KeyAnswers); ok {
		var answers map[int]domain.AnswerRecord
		if err := json.Unmarshal([]byte(raw), &answers); err != nil {
			m.corrupt(KeyAnswers, err)
		} else {
			for idx, rec := range answers {
				if idx < 0 || idx >= len(questions) {
					m.corrupt(KeyAnswers, fmt.Errorf("answer for index %d", idx))
					continue
				}
				state.Answers[idx] = rec
			}
		}
	}

	if raw, ok := m.get(ctx, KeyIndex); ok {
		idx, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			m.corrupt(KeyIndex, err)
		case idx < 0 || idx >= len(questions):
			m.corrupt(KeyIndex, fmt.Errorf("index %d outside %d questions", idx, len(questions)))
		default:
			state.CurrentIndex = idx
		}
	}

	if raw, ok := m.get(ctx, KeyTotal); ok {
		if total, err := strconv.Atoi(raw); err != nil {
			m.corrupt(KeyTotal, err)
		} else {
			state.Countdown.Total = total
		}
	}

	// Score is never persisted; replaying the answers keeps it consistent.
	state.Score = countCorrect(state.Answers)
	return state, true
}

// Clear removes every snapshot key. Failures are logged; a leftover finished marker
// is enough to stop the next start from resuming.
func (m *SnapshotManager) Clear(ctx context.Context) {
	if err := m.set(ctx, KeyFinished, "true"); err != nil {
		m.log.WithError(err).Warn("mark snapshot finished")
	}
	keys := []string{m.Key(KeyQuestions), m.Key(KeyAnswers), m.Key(KeyIndex), m.Key(KeyTotal)}
	if err := m.store.Delete(ctx, keys...); err != nil {
		m.log.WithError(err).Warn("delete snapshot keys")
		return
	}
	if err := m.store.Delete(ctx, m.Key(KeyFinished)); err != nil {
		m.log.WithError(err).Warn("delete finished marker")
	}
}

func (m *SnapshotManager) set(ctx context.Context, name, value string) error {
	if err := m.store.Set(ctx, m.Key(name), value); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

func (m *SnapshotManager) get(ctx context.Context, name string) (string, bool) {
	value, ok, err := m.store.Get(ctx, m.Key(name))
	if err != nil {
		m.log.WithError(err).WithField("key", name).Warn("read snapshot key")
		return "", false
	}
	return value, ok
}

func (m *SnapshotManager) corrupt(name string, cause error) {
	if cause == nil {
		cause = fmt.Errorf("empty value")
	}
	m.log.WithError(fmt.Errorf("%w: %s: %v", domain.ErrPersistenceCorrupt, name, cause)).
		Warn("falling back to default")
}
