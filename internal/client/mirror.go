package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"trivia-service/internal/domain"
)

// Mirror is the client-side view of the room roster. It holds at most one participant
// per id and notifies watchers after every change.
type Mirror struct {
	mu       sync.Mutex
	players  []domain.Participant
	watchers map[int]chan []domain.Participant
	nextID   int
}

func NewMirror() *Mirror {
	return &Mirror{watchers: make(map[int]chan []domain.Participant)}
}

// Apply folds one server message into the roster. Messages that carry no roster change
// are ignored.
func (m *Mirror) Apply(env domain.Envelope) error {
	switch env.Type {
	case domain.MsgRoomState:
		var state domain.RoomSnapshot
		if err := json.Unmarshal(env.Data, &state); err != nil {
			return fmt.Errorf("decode room_state: %w", err)
		}
		m.Replace(state.Players)
	case domain.MsgRankingUpdate:
		var ranking domain.RankingUpdatePayload
		if err := json.Unmarshal(env.Data, &ranking); err != nil {
			return fmt.Errorf("decode ranking_update: %w", err)
		}
		m.Replace(ranking.Players)
	case domain.MsgPlayerJoined:
		var joined domain.PlayerJoinedPayload
		if err := json.Unmarshal(env.Data, &joined); err != nil {
			return fmt.Errorf("decode player_joined: %w", err)
		}
		m.Add(domain.Participant{
			ID:        joined.PlayerID,
			Username:  joined.Username,
			Avatar:    joined.Avatar,
			Score:     joined.Score,
			Connected: joined.Connected,
		})
	case domain.MsgPlayerLeft:
		var left domain.PlayerLeftPayload
		if err := json.Unmarshal(env.Data, &left); err != nil {
			return fmt.Errorf("decode player_left: %w", err)
		}
		m.Remove(left.PlayerID)
	case domain.MsgAnswerResult:
		var result domain.AnswerResultPayload
		if err := json.Unmarshal(env.Data, &result); err != nil {
			return fmt.Errorf("decode answer_result: %w", err)
		}
		m.SetScore(result.PlayerID, result.NewScore)
	case domain.MsgGameStarted:
		log.Info().Msg("game started by server")
	case domain.MsgError:
		var payload domain.ErrorPayload
		_ = json.Unmarshal(env.Data, &payload)
		log.Warn().Str("message", payload.Message).Msg("server reported an error")
	default:
		log.Debug().Str("type", string(env.Type)).Msg("ignoring unknown message")
	}
	return nil
}

// Replace swaps the whole roster.
func (m *Mirror) Replace(players []domain.Participant) {
	m.update(func([]domain.Participant) []domain.Participant {
		out := make([]domain.Participant, 0, len(players))
		seen := make(map[string]bool, len(players))
		for _, p := range players {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
		}
		return out
	})
}

// Add appends p unless a participant with the same id is already present.
// It reports whether the roster changed.
func (m *Mirror) Add(p domain.Participant) bool {
	added := false
	m.update(func(players []domain.Participant) []domain.Participant {
		for _, existing := range players {
			if existing.ID == p.ID {
				return players
			}
		}
		added = true
		return append(players, p)
	})
	return added
}

func (m *Mirror) Remove(id string) {
	m.update(func(players []domain.Participant) []domain.Participant {
		out := players[:0]
		for _, p := range players {
			if p.ID != id {
				out = append(out, p)
			}
		}
		return out
	})
}

// SetScore updates only the named participant.
func (m *Mirror) SetScore(id string, score int) {
	m.update(func(players []domain.Participant) []domain.Participant {
		for i := range players {
			if players[i].ID == id {
				players[i].Score = score
			}
		}
		return players
	})
}

// Reset empties the roster.
func (m *Mirror) Reset() {
	m.update(func([]domain.Participant) []domain.Participant { return nil })
}

// Players returns a copy of the roster in arrival (or server) order.
func (m *Mirror) Players() []domain.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Participant(nil), m.players...)
}

// Watch returns a channel receiving the latest roster after each change. Slow readers only
// ever see the most recent roster. Call cancel to stop watching.
func (m *Mirror) Watch() (<-chan []domain.Participant, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	ch := make(chan []domain.Participant, 1)
	m.watchers[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(ch)
		}
	}
}

func (m *Mirror) update(fn func([]domain.Participant) []domain.Participant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players = fn(m.players)
	snapshot := append([]domain.Participant(nil), m.players...)
	for _, ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}
