package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"trivia-service/internal/domain"
)

// RoomMirror publishes room presence to Redis so other processes (dashboards,
// a second server instance) can read who is in a room and how they rank.
// Keys:
//   - room:{id}     JSON snapshot, expires after ttl of inactivity
//   - room:{id}:lb  ZSET participant id -> score
//
// The in-process registry stays the source of truth; the mirror is best-effort.
type RoomMirror struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRoomMirror(client *redis.Client, ttl time.Duration) *RoomMirror {
	return &RoomMirror{client: client, ttl: ttl}
}

// SaveRoom implements app.RoomMirror.
func (m *RoomMirror) SaveRoom(ctx context.Context, snapshot domain.RoomSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	lbKey := m.leaderboardKey(snapshot.RoomID)

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, m.roomKey(snapshot.RoomID), payload, m.ttl)
	pipe.Del(ctx, lbKey)
	if len(snapshot.Players) > 0 {
		members := make([]redis.Z, 0, len(snapshot.Players))
		for _, p := range snapshot.Players {
			members = append(members, redis.Z{Score: float64(p.Score), Member: p.ID})
		}
		pipe.ZAdd(ctx, lbKey, members...)
		if m.ttl > 0 {
			pipe.Expire(ctx, lbKey, m.ttl)
		}
	}
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteRoom implements app.RoomMirror.
func (m *RoomMirror) DeleteRoom(ctx context.Context, roomID string) error {
	return m.client.Del(ctx, m.roomKey(roomID), m.leaderboardKey(roomID)).Err()
}

// LoadRoom reads a mirrored snapshot back.
func (m *RoomMirror) LoadRoom(ctx context.Context, roomID string) (domain.RoomSnapshot, bool, error) {
	raw, err := m.client.Get(ctx, m.roomKey(roomID)).Bytes()
	if err == redis.Nil {
		return domain.RoomSnapshot{}, false, nil
	}
	if err != nil {
		return domain.RoomSnapshot{}, false, err
	}
	var snapshot domain.RoomSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return domain.RoomSnapshot{}, false, err
	}
	return snapshot, true, nil
}

// TopPlayers returns up to limit participant ids ordered by score desc.
func (m *RoomMirror) TopPlayers(ctx context.Context, roomID string, limit int64) ([]redis.Z, error) {
	return m.client.ZRevRangeWithScores(ctx, m.leaderboardKey(roomID), 0, limit-1).Result()
}

func (m *RoomMirror) roomKey(roomID string) string {
	return "room:" + roomID
}

func (m *RoomMirror) leaderboardKey(roomID string) string {
	return "room:" + roomID + ":lb"
}
