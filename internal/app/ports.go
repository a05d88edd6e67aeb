package app

import (
	"context"

	"trivia-service/internal/domain"
)

// QuestionSource supplies an ordered batch of questions.
type QuestionSource interface {
	FetchQuestions(ctx context.Context, limit int) ([]domain.Question, error)
}

// SessionStore is the persistence contract for single-player sessions.
// Only CreateSession is allowed to fail a game; everything else is best-effort.
type SessionStore interface {
	CreateSession(ctx context.Context, playerID string) (string, error)
	InsertAnswer(ctx context.Context, record domain.AnswerRecord) error
	CompleteSession(ctx context.Context, sessionID string, finalScore int) error
}

// ProfileStore reads and creates player profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (domain.Profile, error)
	InsertProfile(ctx context.Context, profile domain.Profile) error
}

// RoomMirror receives room snapshots after every registry mutation (Redis, etc).
type RoomMirror interface {
	SaveRoom(ctx context.Context, snapshot domain.RoomSnapshot) error
	DeleteRoom(ctx context.Context, roomID string) error
}

// EventPublisher forwards game events to a message bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, v any) error
}
