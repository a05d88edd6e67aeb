package client

import (
	"encoding/json"
	"testing"
	"time"

	"trivia-service/internal/domain"
)

func TestMirrorMergeSemantics(t *testing.T) {
	m := NewMirror()

	apply(t, m, domain.MsgRoomState, domain.RoomSnapshot{Players: []domain.Participant{
		{ID: "a", Username: "Alice", Score: 5},
		{ID: "b", Username: "Bob", Score: 7},
	}})
	expectIDs(t, m, "a", "b")

	// player_joined is idempotent.
	apply(t, m, domain.MsgPlayerJoined, domain.PlayerJoinedPayload{PlayerID: "b", Username: "Bobby"})
	apply(t, m, domain.MsgPlayerJoined, domain.PlayerJoinedPayload{PlayerID: "c", Username: "Cleo", Connected: true})
	expectIDs(t, m, "a", "b", "c")
	if m.Players()[1].Username != "Bob" {
		t.Fatalf("duplicate join must be ignored, got %+v", m.Players()[1])
	}

	// answer_result touches only the named participant.
	apply(t, m, domain.MsgAnswerResult, domain.AnswerResultPayload{PlayerID: "a", NewScore: 22})
	players := m.Players()
	if players[0].Score != 22 || players[1].Score != 7 || players[2].Score != 0 {
		t.Fatalf("unexpected scores %+v", players)
	}

	apply(t, m, domain.MsgPlayerLeft, domain.PlayerLeftPayload{PlayerID: "b"})
	expectIDs(t, m, "a", "c")

	// ranking_update is a full replace.
	apply(t, m, domain.MsgRankingUpdate, domain.RankingUpdatePayload{Players: []domain.Participant{
		{ID: "c", Score: 30},
		{ID: "a", Score: 22},
		{ID: "c", Score: 1},
	}})
	expectIDs(t, m, "c", "a")

	// Messages without roster data leave it untouched.
	apply(t, m, domain.MsgGameStarted, domain.GameStartedPayload{QuestionIndex: 0})
	apply(t, m, domain.MsgError, domain.ErrorPayload{Message: "boom"})
	expectIDs(t, m, "c", "a")
}

func TestMirrorRejectsMalformedPayloads(t *testing.T) {
	m := NewMirror()
	err := m.Apply(domain.Envelope{Type: domain.MsgRoomState, Data: json.RawMessage(`"nope"`)})
	if err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestMirrorWatchKeepsLatest(t *testing.T) {
	m := NewMirror()
	updates, cancel := m.Watch()

	m.Add(domain.Participant{ID: "a"})
	m.Add(domain.Participant{ID: "b"})

	select {
	case players := <-updates:
		if len(players) != 2 {
			t.Fatalf("expected latest roster with 2 players, got %+v", players)
		}
	case <-time.After(time.Second):
		t.Fatalf("no update received")
	}

	cancel()
	if _, ok := <-updates; ok {
		t.Fatalf("expected channel closed after cancel")
	}
	m.Add(domain.Participant{ID: "c"})
}

func apply(t *testing.T, m *Mirror, typ domain.MessageType, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := m.Apply(domain.Envelope{Type: typ, Data: raw}); err != nil {
		t.Fatalf("apply %s: %v", typ, err)
	}
}

func expectIDs(t *testing.T, m *Mirror, ids ...string) {
	t.Helper()
	players := m.Players()
	if len(players) != len(ids) {
		t.Fatalf("expected %v, got %+v", ids, players)
	}
	for i, id := range ids {
		if players[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, players[i].ID)
		}
	}
}
