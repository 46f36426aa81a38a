package app

import "quiz-engine/internal/domain"

// Transition is what a timer tick asks the engine to do.
type Transition int

const (
	TransitionNone Transition = iota
	// TransitionSkip advances past the current question without an answer.
	TransitionSkip
	// TransitionFinish ends the session because the total budget ran out.
	TransitionFinish
)

func (t Transition) String() string {
	switch t {
	case TransitionSkip:
		return "skip"
	case TransitionFinish:
		return "finish"
	default:
		return "none"
	}
}

// Countdown holds the per-question and total budgets in whole seconds.
type Countdown struct {
	PerQuestion int
	Total       int
}

// NewCountdown returns the budgets of a fresh session with n questions.
func NewCountdown(n int) Countdown {
	return Countdown{PerQuestion: domain.QuestionSeconds, Total: n * domain.QuestionSeconds}
}

// Tick consumes one second from both budgets. The total budget is checked first,
// so when both run out on the same tick the session finishes instead of skipping.
func (c *Countdown) Tick() Transition {
	if c.Total > 0 {
		c.Total--
	}
	if c.Total <= 0 {
		return TransitionFinish
	}
	if c.PerQuestion > 0 {
		c.PerQuestion--
	}
	if c.PerQuestion <= 0 {
		return TransitionSkip
	}
	return TransitionNone
}

// ResetQuestion restores the per-question budget; the total budget is untouched.
func (c *Countdown) ResetQuestion() {
	c.PerQuestion = domain.QuestionSeconds
}
