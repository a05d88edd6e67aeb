package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"trivia-service/internal/domain"
)

// SessionRecord is the stored form of a game session.
type SessionRecord struct {
	ID          string
	PlayerID    string
	FinalScore  int
	Completed   bool
	StartedAt   time.Time
	CompletedAt time.Time
}

// Store is an in-memory implementation of app.SessionStore and app.ProfileStore.
type Store struct {
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]*SessionRecord
	answers  map[string][]domain.AnswerRecord
	profiles map[string]domain.Profile
}

func NewStore() *Store {
	return &Store{
		clock:    time.Now,
		sessions: make(map[string]*SessionRecord),
		answers:  make(map[string][]domain.AnswerRecord),
		profiles: make(map[string]domain.Profile),
	}
}

func (s *Store) CreateSession(_ context.Context, playerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.sessions[id] = &SessionRecord{ID: id, PlayerID: playerID, StartedAt: s.clock()}
	return id, nil
}

func (s *Store) InsertAnswer(_ context.Context, record domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[record.SessionID]; !ok {
		return fmt.Errorf("insert answer: unknown session %q", record.SessionID)
	}
	s.answers[record.SessionID] = append(s.answers[record.SessionID], record)
	return nil
}

func (s *Store) CompleteSession(_ context.Context, sessionID string, finalScore int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("complete session: unknown session %q", sessionID)
	}
	session.FinalScore = finalScore
	session.Completed = true
	session.CompletedAt = s.clock()
	return nil
}

// Session returns a copy of the stored session.
func (s *Store) Session(sessionID string) (SessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return SessionRecord{}, false
	}
	return *session, true
}

// Answers returns the answers recorded for a session in insertion order.
func (s *Store) Answers(sessionID string) []domain.AnswerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AnswerRecord(nil), s.answers[sessionID]...)
}

func (s *Store) GetProfile(_ context.Context, id string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[id]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return profile, nil
}

func (s *Store) InsertProfile(_ context.Context, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.profiles {
		if existing.Username == profile.Username {
			return domain.ErrUsernameTaken
		}
	}
	if _, ok := s.profiles[profile.ID]; ok {
		return fmt.Errorf("insert profile: duplicate id %q", profile.ID)
	}
	s.profiles[profile.ID] = profile
	return nil
}
