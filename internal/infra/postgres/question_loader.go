package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"trivia-service/internal/domain"
)

// QuestionLoader loads random question batches from the trivia_questions table.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, limit int) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id::text, question_text, option1, option2, option3, option4, correct_answer, category
		FROM trivia_questions
		ORDER BY random()
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	questions := make([]domain.Question, 0, limit)
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(
			&q.ID, &q.Prompt,
			&q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3],
			&q.CorrectOption, &q.Category,
		); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}

// FetchQuestions lets the loader serve as an uncached app.QuestionSource.
func (l *QuestionLoader) FetchQuestions(ctx context.Context, limit int) ([]domain.Question, error) {
	return l.LoadQuestions(ctx, limit)
}

// InsertQuestion adds a question to the bank and returns its id.
func (l *QuestionLoader) InsertQuestion(ctx context.Context, q domain.Question) (string, error) {
	var id string
	err := l.pool.QueryRow(ctx, `
		INSERT INTO trivia_questions (question_text, option1, option2, option3, option4, correct_answer, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id::text`,
		q.Prompt, q.Options[0], q.Options[1], q.Options[2], q.Options[3], q.CorrectOption, q.Category,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert question: %w", err)
	}
	return id, nil
}
