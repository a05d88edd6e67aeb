package domain

import "encoding/json"

// MessageType names a real-time protocol message.
type MessageType string

// Client to server.
const (
	MsgJoinRoom     MessageType = "join_room"
	MsgStartGame    MessageType = "start_game"
	MsgSubmitAnswer MessageType = "submit_answer"
	MsgLeaveRoom    MessageType = "leave_room"
)

// Server to client.
const (
	MsgRoomState     MessageType = "room_state"
	MsgPlayerJoined  MessageType = "player_joined"
	MsgPlayerLeft    MessageType = "player_left"
	MsgAnswerResult  MessageType = "answer_result"
	MsgGameStarted   MessageType = "game_started"
	MsgRankingUpdate MessageType = "ranking_update"
	MsgError         MessageType = "error"
)

// Envelope is the wire form of an inbound message; Data is decoded per type.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Message is an outbound message with a typed payload.
type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// RoomStatePayload is sent to a joining connection.
type RoomStatePayload = RoomSnapshot

type PlayerJoinedPayload struct {
	PlayerID  string `json:"playerId"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

type AnswerResultPayload struct {
	PlayerID     string `json:"playerId"`
	Username     string `json:"username"`
	PointsEarned int    `json:"pointsEarned"`
	NewScore     int    `json:"newScore"`
}

type GameStartedPayload struct {
	Question      Question `json:"question"`
	QuestionIndex int      `json:"questionIndex"`
}

type RankingUpdatePayload struct {
	Players []Participant `json:"players"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessage wraps a payload into an outbound message.
func NewMessage(t MessageType, data any) Message {
	return Message{Type: t, Data: data}
}
