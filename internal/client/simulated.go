package client

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"trivia-service/internal/domain"
)

// LocalPlayerID identifies the local player in simulated mode.
const LocalPlayerID = "current-player"

const (
	peerScoreChance = 0.7
	peerMinPoints   = 3
	peerMaxPoints   = 10
)

// SyntheticPeers join a simulated room one by one, in this order.
var SyntheticPeers = []domain.Participant{
	{ID: "player-1", Username: "SuperPlayer", Avatar: "🚀", Connected: true},
	{ID: "player-2", Username: "GameMaster", Avatar: "🎮", Connected: true},
	{ID: "player-3", Username: "TriviaKing", Avatar: "👑", Connected: true},
	{ID: "player-4", Username: "QuizWhiz", Avatar: "⭐", Connected: true},
}

// simulatedTransport keeps the roster lively when no server is reachable.
type simulatedTransport struct {
	mirror      *Mirror
	clock       clockwork.Clock
	answerDelay time.Duration

	mu     sync.Mutex
	rnd    *rand.Rand
	timers []clockwork.Timer
	closed bool
}

// startSimulated seeds the local player and schedules the synthetic peers at
// interval, 2*interval, ...
func startSimulated(mirror *Mirror, clock clockwork.Clock, rnd *rand.Rand, username, avatar string, interval, answerDelay time.Duration) *simulatedTransport {
	s := &simulatedTransport{
		mirror:      mirror,
		clock:       clock,
		answerDelay: answerDelay,
		rnd:         rnd,
	}
	log.Info().Msg("starting simulated multiplayer mode")
	mirror.Replace([]domain.Participant{{
		ID:              LocalPlayerID,
		Username:        username,
		Avatar:          avatar,
		Connected:       true,
		IsCurrentPlayer: true,
	}})

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, peer := range SyntheticPeers {
		s.timers = append(s.timers, clock.AfterFunc(time.Duration(i+1)*interval, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.closed {
				return
			}
			if s.mirror.Add(peer) {
				log.Debug().Str("username", peer.Username).Msg("simulated player joined")
			}
		}))
	}
	return s
}

func (s *simulatedTransport) Mode() Mode { return ModeSimulated }

func (s *simulatedTransport) StartGame(context.Context) error {
	log.Info().Msg("starting simulated game")
	return nil
}

// SubmitAnswer credits the local player right away and, after answerDelay, gives a random
// subset of the synthetic peers a few points each.
func (s *simulatedTransport) SubmitAnswer(_ context.Context, submission domain.AnswerSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if submission.PointsEarned > 0 {
		s.mirror.update(func(players []domain.Participant) []domain.Participant {
			for i := range players {
				if players[i].IsCurrentPlayer {
					players[i].Score += submission.PointsEarned
				}
			}
			return players
		})
	}
	s.timers = append(s.timers, s.clock.AfterFunc(s.answerDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		s.mirror.update(func(players []domain.Participant) []domain.Participant {
			for i := range players {
				if players[i].IsCurrentPlayer {
					continue
				}
				if s.rnd.Float64() < peerScoreChance {
					players[i].Score += peerMinPoints + s.rnd.IntN(peerMaxPoints-peerMinPoints+1)
				}
			}
			return players
		})
	}))
	return nil
}

// Leave stops every pending timer; no callback mutates the roster afterwards.
func (s *simulatedTransport) Leave() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	return nil
}
