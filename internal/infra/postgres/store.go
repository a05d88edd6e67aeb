package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"trivia-service/internal/domain"
)

const uniqueViolation = "23505"

// Store persists sessions, answers and profiles. It implements app.SessionStore and app.ProfileStore.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateSession(ctx context.Context, playerID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO game_sessions (player_id, status) VALUES ($1, 'active') RETURNING id::text`,
		playerID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (s *Store) InsertAnswer(ctx context.Context, r domain.AnswerRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trivia_answers
			(session_id, player_id, question_id, selected_option, is_correct, points, response_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.SessionID, r.PlayerID, r.QuestionID, r.SelectedOption, r.Correct, r.Points, r.ResponseTime,
	)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func (s *Store) CompleteSession(ctx context.Context, sessionID string, finalScore int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_sessions
		SET status = 'completed', final_score = $2, completed_at = now()
		WHERE id = $1`,
		sessionID, finalScore,
	)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete session: unknown session %q", sessionID)
	}
	return nil
}

// FinalScore returns the stored final score and status of a session.
func (s *Store) FinalScore(ctx context.Context, sessionID string) (int, string, error) {
	var (
		score  int
		status string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT final_score, status FROM game_sessions WHERE id = $1`, sessionID,
	).Scan(&score, &status)
	if err != nil {
		return 0, "", fmt.Errorf("get session: %w", err)
	}
	return score, status, nil
}

// CountAnswers returns how many answers were recorded for a session.
func (s *Store) CountAnswers(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM trivia_answers WHERE session_id = $1`, sessionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count answers: %w", err)
	}
	return n, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	var p domain.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, display_name, country FROM profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.Username, &p.DisplayName, &p.Country)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *Store) InsertProfile(ctx context.Context, p domain.Profile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, username, display_name, country) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Username, p.DisplayName, p.Country,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "profiles_username_key" {
		return domain.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}
