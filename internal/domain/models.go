package domain

import (
	"html"
	"sort"
)

// QuestionSeconds is the per-question time budget and the unit of the total budget.
const QuestionSeconds = 10

// Question models one multiple-choice trivia item as delivered by a provider.
// Text and answers may carry HTML entities; use the Display helpers to decode them.
type Question struct {
	Category         string   `json:"category,omitempty"`
	Type             string   `json:"type,omitempty"`
	Difficulty       string   `json:"difficulty,omitempty"`
	Text             string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// Valid reports whether the question can be played: a prompt, a correct answer,
// and no incorrect answer equal to the correct one.
func (q Question) Valid() bool {
	if q.Text == "" || q.CorrectAnswer == "" {
		return false
	}
	for _, a := range q.IncorrectAnswers {
		if a == q.CorrectAnswer {
			return false
		}
	}
	return true
}

// DisplayText returns the prompt with entities decoded as plain text.
func (q Question) DisplayText() string {
	return html.UnescapeString(q.Text)
}

// Choices returns every answer sorted for display. The raw values are kept so that
// a selection can be compared against CorrectAnswer byte for byte.
func (q Question) Choices() []Choice {
	choices := make([]Choice, 0, len(q.IncorrectAnswers)+1)
	choices = append(choices, Choice{Value: q.CorrectAnswer, Label: html.UnescapeString(q.CorrectAnswer)})
	for _, a := range q.IncorrectAnswers {
		choices = append(choices, Choice{Value: a, Label: html.UnescapeString(a)})
	}
	sort.Slice(choices, func(i, j int) bool {
		return choices[i].Value < choices[j].Value
	})
	return choices
}

// Choice is a selectable answer. Value is submitted back, Label is shown.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// AnswerRecord is the user's response to the question at a given index.
type AnswerRecord struct {
	SelectedAnswer string `json:"answer"`
	IsCorrect      bool   `json:"isCorrect"`
}

// BatchRequest describes the questions a provider should return.
type BatchRequest struct {
	Amount     int
	Difficulty string
	Type       string
}

// DefaultBatch is the fixed request used by the quiz.
func DefaultBatch() BatchRequest {
	return BatchRequest{Amount: 10, Difficulty: "easy", Type: "multiple"}
}

// Status is the lifecycle state of a quiz engine.
type Status string

const (
	StatusLoading    Status = "loading"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusFailed     Status = "failed"
	StatusClosed     Status = "closed"
)

// Summary holds the read-only results of a finished session.
type Summary struct {
	Score      int `json:"score"`
	Total      int `json:"total"`
	Answered   int `json:"answered"`
	Skipped    int `json:"skipped"`
	Percentage int `json:"percentage"`
}

// View is what a client needs to render the active question.
type View struct {
	Index                  int      `json:"index"`
	Total                  int      `json:"total"`
	Question               string   `json:"question"`
	Choices                []Choice `json:"choices"`
	Selected               string   `json:"selected,omitempty"`
	PerQuestionSecondsLeft int      `json:"perQuestionSecondsLeft"`
	TotalSecondsLeft       int      `json:"totalSecondsLeft"`
	Answered               int      `json:"answered"`
	Progress               int      `json:"progress"`
}

// Update is published to subscribers after every engine transition.
type Update struct {
	Status  Status   `json:"status"`
	View    *View    `json:"view,omitempty"`
	Summary *Summary `json:"summary,omitempty"`
	Err     error    `json:"-"`
}
