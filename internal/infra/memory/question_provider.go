package memory

import (
	"context"
	"sync"

	"quiz-engine/internal/domain"
)

// StaticProvider serves a fixed batch of questions (useful for tests/demos).
type StaticProvider struct {
	mu        sync.Mutex
	questions []domain.Question
	err       error
	calls     int
}

func NewStaticProvider(questions []domain.Question) *StaticProvider {
	return &StaticProvider{questions: questions}
}

// FailWith makes every following Fetch return err; nil restores normal behaviour.
func (p *StaticProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// SetQuestions replaces the batch served by later fetches.
func (p *StaticProvider) SetQuestions(questions []domain.Question) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.questions = questions
}

// Calls returns how many times Fetch ran.
func (p *StaticProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *StaticProvider) Fetch(_ context.Context, req domain.BatchRequest) ([]domain.Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	n := len(p.questions)
	if req.Amount > 0 && req.Amount < n {
		n = req.Amount
	}
	out := make([]domain.Question, n)
	copy(out, p.questions[:n])
	return out, nil
}

// SampleQuestions is a small general-knowledge batch in the provider's wire shape.
func SampleQuestions() []domain.Question {
	return []domain.Question{
		{Category: "General Knowledge", Type: "multiple", Difficulty: "easy", Text: "What is 2 + 2?", CorrectAnswer: "4", IncorrectAnswers: []string{"3", "5", "22"}},
		{Category: "Geography", Type: "multiple", Difficulty: "easy", Text: "What is the capital of France?", CorrectAnswer: "Paris", IncorrectAnswers: []string{"Lyon", "Marseille", "Nice"}},
		{Category: "Science: Computers", Type: "multiple", Difficulty: "easy", Text: "What does &quot;CPU&quot; stand for?", CorrectAnswer: "Central Processing Unit", IncorrectAnswers: []string{"Central Process Unit", "Computer Personal Unit", "Central Processor Unit"}},
		{Category: "Animals", Type: "multiple", Difficulty: "easy", Text: "How many legs does a spider have?", CorrectAnswer: "8", IncorrectAnswers: []string{"6", "10", "4"}},
		{Category: "Science &amp; Nature", Type: "multiple", Difficulty: "easy", Text: "What is the chemical symbol for gold?", CorrectAnswer: "Au", IncorrectAnswers: []string{"Ag", "Go", "Gd"}},
		{Category: "Geography", Type: "multiple", Difficulty: "easy", Text: "Which is the largest ocean on Earth?", CorrectAnswer: "Pacific Ocean", IncorrectAnswers: []string{"Atlantic Ocean", "Indian Ocean", "Arctic Ocean"}},
		{Category: "History", Type: "multiple", Difficulty: "easy", Text: "In which year did World War II end?", CorrectAnswer: "1945", IncorrectAnswers: []string{"1944", "1939", "1950"}},
		{Category: "Entertainment: Music", Type: "multiple", Difficulty: "easy", Text: "Which band recorded &#039;Hey Jude&#039;?", CorrectAnswer: "The Beatles", IncorrectAnswers: []string{"The Rolling Stones", "Queen", "The Who"}},
		{Category: "Science & Nature", Type: "multiple", Difficulty: "easy", Text: "Which planet is known as the Red Planet?", CorrectAnswer: "Mars", IncorrectAnswers: []string{"Venus", "Jupiter", "Mercury"}},
		{Category: "Mathematics", Type: "multiple", Difficulty: "easy", Text: "What is the square root of 81?", CorrectAnswer: "9", IncorrectAnswers: []string{"8", "7", "18"}},
	}
}
