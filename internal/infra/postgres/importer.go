package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"quiz-engine/internal/domain"
)

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID               int64    `bun:"id,pk,autoincrement"`
	Category         string   `bun:"category"`
	Difficulty       string   `bun:"difficulty"`
	Type             string   `bun:"type"`
	Question         string   `bun:"question"`
	CorrectAnswer    string   `bun:"correct_answer"`
	IncorrectAnswers []string `bun:"incorrect_answers,type:jsonb"`
}

// Importer stores provider batches into the question bank.
type Importer struct {
	db *bun.DB
}

func NewImporter(db *bun.DB) *Importer {
	return &Importer{db: db}
}

// Import inserts the playable questions and skips ones already in the bank.
// It returns how many rows were added.
func (i *Importer) Import(ctx context.Context, questions []domain.Question) (int, error) {
	rows := make([]questionRow, 0, len(questions))
	for _, q := range questions {
		if !q.Valid() {
			continue
		}
		rows = append(rows, questionRow{
			Category:         q.Category,
			Difficulty:       q.Difficulty,
			Type:             q.Type,
			Question:         q.Text,
			CorrectAnswer:    q.CorrectAnswer,
			IncorrectAnswers: q.IncorrectAnswers,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	res, err := i.db.NewInsert().
		Model(&rows).
		On("CONFLICT (question) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert questions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
