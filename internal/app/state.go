package app

import (
	"math"

	"quiz-engine/internal/domain"
)

// State is the mutable state of one quiz run. It is owned by an Engine and only
// touched while the engine lock is held.
type State struct {
	Questions    []domain.Question
	CurrentIndex int
	Answers      map[int]domain.AnswerRecord
	Score        int
	Countdown    Countdown
	Finished     bool
}

func newState(questions []domain.Question) *State {
	return &State{
		Questions: questions,
		Answers:   make(map[int]domain.AnswerRecord),
		Countdown: NewCountdown(len(questions)),
	}
}

// record evaluates selected against the active question and stores the answer.
// Score always equals the number of correct records: a first answer adds its
// result, an overwrite swaps the previous contribution for the new one.
func (s *State) record(selected string) (domain.AnswerRecord, error) {
	if s.Finished {
		return domain.AnswerRecord{}, domain.ErrSessionFinished
	}
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return domain.AnswerRecord{}, domain.ErrIndexOutOfRange
	}

	rec := domain.AnswerRecord{
		SelectedAnswer: selected,
		IsCorrect:      selected == s.Questions[s.CurrentIndex].CorrectAnswer,
	}
	if prev, ok := s.Answers[s.CurrentIndex]; ok && prev.IsCorrect {
		s.Score--
	}
	if rec.IsCorrect {
		s.Score++
	}
	s.Answers[s.CurrentIndex] = rec
	return rec, nil
}

// advance moves to the next question and reports whether there was one.
func (s *State) advance() bool {
	if s.CurrentIndex >= len(s.Questions)-1 {
		return false
	}
	s.CurrentIndex++
	s.Countdown.ResetQuestion()
	return true
}

func (s *State) summary() domain.Summary {
	total := len(s.Questions)
	sum := domain.Summary{
		Score:    s.Score,
		Total:    total,
		Answered: len(s.Answers),
		Skipped:  total - len(s.Answers),
	}
	if total > 0 {
		sum.Percentage = s.Score * 100 / total
	}
	return sum
}

func (s *State) view() domain.View {
	v := domain.View{
		Index:                  s.CurrentIndex,
		Total:                  len(s.Questions),
		PerQuestionSecondsLeft: s.Countdown.PerQuestion,
		TotalSecondsLeft:       s.Countdown.Total,
		Answered:               len(s.Answers),
	}
	if v.Total > 0 {
		v.Progress = int(math.Round(float64(s.CurrentIndex) / float64(v.Total) * 100))
	}
	if s.CurrentIndex >= 0 && s.CurrentIndex < len(s.Questions) {
		q := s.Questions[s.CurrentIndex]
		v.Question = q.DisplayText()
		v.Choices = q.Choices()
	}
	if rec, ok := s.Answers[s.CurrentIndex]; ok {
		v.Selected = rec.SelectedAnswer
	}
	return v
}

func countCorrect(answers map[int]domain.AnswerRecord) int {
	n := 0
	for _, rec := range answers {
		if rec.IsCorrect {
			n++
		}
	}
	return n
}
