package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

const (
	defaultWriteTimeout   = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 4096
)

// WSOptions tunes the per-connection keepalive and limits.
type WSOptions struct {
	WriteTimeout   time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

type WSHandler struct {
	registry *app.RoomRegistry
	upgrader websocket.Upgrader
	opts     WSOptions
}

func NewWSHandler(registry *app.RoomRegistry, opts WSOptions) *WSHandler {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	return &WSHandler{
		registry: registry,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the room registry.
// Every connection gets its own id; the registry decides which room it belongs to once
// it sends join_room.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	updates, err := h.registry.Connect(connID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	logger := log.With().Str("connection_id", connID).Logger()
	logger.Info().Str("remote", r.RemoteAddr).Msg("websocket connected")

	replies := make(chan domain.Message, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	// Single writer: registry broadcasts, direct replies and pings all go through here.
	go func() {
		defer close(writerDone)
		ping := time.NewTicker(h.opts.PongWait * 9 / 10)
		defer ping.Stop()
		for {
			var msg domain.Message
			select {
			case update, ok := <-updates:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
						time.Now().Add(h.opts.WriteTimeout))
					conn.Close()
					return
				}
				msg = update
			case reply := <-replies:
				msg = reply
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteTimeout)); err != nil {
					logger.Debug().Err(err).Msg("ws ping failed")
					conn.Close()
					return
				}
				continue
			case <-closeSignals:
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("ws write error")
				// Unblocks the read loop.
				conn.Close()
				return
			}
		}
	}()

	reply := func(msg domain.Message) {
		select {
		case replies <- msg:
		case <-writerDone:
		}
	}

	conn.SetReadLimit(h.opts.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("ws read error")
			}
			break
		}
		var inbound domain.Envelope
		if err := json.Unmarshal(raw, &inbound); err != nil {
			reply(errorText("invalid message"))
			continue
		}
		if msg, ok := h.dispatch(r, connID, inbound); ok {
			reply(msg)
		}
	}

	close(closeSignals)
	<-writerDone
	h.registry.Disconnect(connID)
	logger.Info().Msg("websocket disconnected")
}

// dispatch applies one client message. The returned message, if any, goes to this
// connection only; room-wide effects arrive through the registry subscription.
func (h *WSHandler) dispatch(r *http.Request, connID string, in domain.Envelope) (domain.Message, bool) {
	switch in.Type {
	case domain.MsgJoinRoom:
		var payload domain.JoinRoomPayload
		if err := json.Unmarshal(in.Data, &payload); err != nil {
			return errorText("invalid join_room payload"), true
		}
		if _, err := h.registry.Join(payload.RoomID, connID, payload.Username, payload.Avatar); err != nil {
			return errorMessage(err), true
		}
	case domain.MsgStartGame:
		if err := h.registry.StartGame(r.Context(), connID); err != nil {
			return errorMessage(err), true
		}
	case domain.MsgSubmitAnswer:
		var payload domain.AnswerSubmission
		if err := json.Unmarshal(in.Data, &payload); err != nil {
			return errorText("invalid submit_answer payload"), true
		}
		if _, err := h.registry.SubmitAnswer(connID, payload); err != nil {
			return errorMessage(err), true
		}
	case domain.MsgLeaveRoom:
		h.registry.Leave(connID)
	default:
		return errorText("unsupported message type"), true
	}
	return domain.Message{}, false
}

func errorMessage(err error) domain.Message {
	switch {
	case errors.Is(err, domain.ErrNotInRoom),
		errors.Is(err, domain.ErrRoomIDRequired),
		errors.Is(err, domain.ErrRegistryClosed):
		return errorText(err.Error())
	default:
		log.Error().Err(err).Msg("ws request failed")
		return errorText("internal error")
	}
}

func errorText(message string) domain.Message {
	return domain.NewMessage(domain.MsgError, domain.ErrorPayload{Message: message})
}
