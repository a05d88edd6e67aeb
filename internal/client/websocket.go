package client

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"trivia-service/internal/domain"
)

// DialFunc opens the real-time connection. It must honour ctx cancellation.
type DialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

// DefaultDial dials with gorilla's default dialer.
func DefaultDial(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	return conn, err
}

const writeWait = 5 * time.Second

// websocketTransport mirrors server-pushed room state.
type websocketTransport struct {
	conn    *websocket.Conn
	mirror  *Mirror
	onClose func(err error)

	writeMu sync.Mutex
	closed  atomic.Bool
}

// newWebsocketTransport sends join_room and starts the read loop. onClose runs once if the
// connection drops without Leave having been called.
func newWebsocketTransport(conn *websocket.Conn, mirror *Mirror, join domain.JoinRoomPayload, onClose func(error)) (*websocketTransport, error) {
	t := &websocketTransport{conn: conn, mirror: mirror, onClose: onClose}
	if err := t.send(domain.MsgJoinRoom, join); err != nil {
		return nil, err
	}
	go t.readLoop()
	return t, nil
}

func (t *websocketTransport) Mode() Mode { return ModeRealtime }

func (t *websocketTransport) StartGame(context.Context) error {
	return t.send(domain.MsgStartGame, struct{}{})
}

func (t *websocketTransport) SubmitAnswer(_ context.Context, submission domain.AnswerSubmission) error {
	return t.send(domain.MsgSubmitAnswer, submission)
}

func (t *websocketTransport) Leave() error {
	if t.closed.Swap(true) {
		return nil
	}
	err := t.send(domain.MsgLeaveRoom, struct{}{})
	t.writeMu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	t.writeMu.Unlock()
	t.conn.Close()
	return err
}

// abort drops the connection without notifying the server.
func (t *websocketTransport) abort() {
	if t.closed.Swap(true) {
		return
	}
	t.conn.Close()
}

func (t *websocketTransport) send(typ domain.MessageType, data any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteJSON(domain.NewMessage(typ, data))
}

func (t *websocketTransport) readLoop() {
	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			if !t.closed.Swap(true) {
				log.Warn().Err(err).Msg("real-time connection lost")
				t.conn.Close()
				if t.onClose != nil {
					t.onClose(err)
				}
			}
			return
		}
		if t.closed.Load() {
			return
		}
		var env domain.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Warn().Err(err).Msg("error parsing real-time message")
			continue
		}
		if err := t.mirror.Apply(env); err != nil {
			log.Warn().Err(err).Str("type", string(env.Type)).Msg("error applying real-time message")
		}
	}
}
