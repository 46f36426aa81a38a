package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-engine/internal/domain"
)

// QuestionBank draws random question batches from the questions table.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

func (b *QuestionBank) Fetch(ctx context.Context, req domain.BatchRequest) ([]domain.Question, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT category, difficulty, type, question, correct_answer, incorrect_answers
		FROM questions
		WHERE ($1::text = '' OR difficulty = $1) AND ($2::text = '' OR type = $2)
		ORDER BY random()
		LIMIT $3`, req.Difficulty, req.Type, req.Amount)
	if err != nil {
		return nil, domain.NewProviderError(domain.Unavailable, fmt.Errorf("query questions: %w", err))
	}
	defer rows.Close()

	questions := make([]domain.Question, 0, req.Amount)
	for rows.Next() {
		var (
			q   domain.Question
			raw []byte
		)
		if err := rows.Scan(&q.Category, &q.Difficulty, &q.Type, &q.Text, &q.CorrectAnswer, &raw); err != nil {
			return nil, domain.NewProviderError(domain.Unavailable, fmt.Errorf("scan question: %w", err))
		}
		if err := json.Unmarshal(raw, &q.IncorrectAnswers); err != nil {
			return nil, domain.NewProviderError(domain.Unavailable, fmt.Errorf("unmarshal incorrect answers: %w", err))
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewProviderError(domain.Unavailable, fmt.Errorf("read questions: %w", err))
	}
	if len(questions) < req.Amount {
		return nil, domain.NewProviderError(domain.Unavailable,
			fmt.Errorf("question bank has %d of %d requested questions", len(questions), req.Amount))
	}
	return questions, nil
}
