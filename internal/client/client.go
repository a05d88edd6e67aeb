package client

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"trivia-service/internal/domain"
)

const (
	DefaultConnectTimeout = 3 * time.Second
	DefaultPeerInterval   = time.Second
	DefaultAnswerDelay    = time.Second
)

// Error indicators surfaced through Client.Err.
const (
	ErrTextConnectFailed  = "Failed to connect to game server"
	ErrTextConnectTimeout = "Connection to game server timed out"
	ErrTextConnectionLost = "Connection to game server lost"
)

// ErrNoRoom is returned by room operations before Connect.
var ErrNoRoom = errors.New("not in a room")

type Config struct {
	ServerURL      string
	ConnectTimeout time.Duration
	PeerInterval   time.Duration
	AnswerDelay    time.Duration
	Clock          clockwork.Clock
	Dial           DialFunc
	Rand           *rand.Rand
}

// Client presents one roster regardless of whether the server is reachable. Connect
// tries the real-time server first and falls back to simulated peers, at most once per
// attempt, on timeout, dial error or an unexpected close.
type Client struct {
	cfg    Config
	mirror *Mirror

	mu        sync.Mutex
	current   *attempt
	transport Transport
	mode      Mode
	roomID    string
	connected bool
	errText   string
}

// attempt is one Connect call. A newer Connect or LeaveRoom makes it stale.
type attempt struct {
	username string
	avatar   string
	roomID   string
	cancel   context.CancelFunc
	timer    clockwork.Timer
	fellBack bool
}

func New(cfg Config) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.PeerInterval <= 0 {
		cfg.PeerInterval = DefaultPeerInterval
	}
	if cfg.AnswerDelay <= 0 {
		cfg.AnswerDelay = DefaultAnswerDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Dial == nil {
		cfg.Dial = DefaultDial
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &Client{cfg: cfg, mirror: NewMirror(), mode: ModeIdle}
}

// Connect starts joining roomID and returns immediately. Progress is observable through
// Mode, Players and Watch.
func (c *Client) Connect(roomID, username, avatar string) {
	c.mu.Lock()
	old := c.teardownLocked()
	c.mu.Unlock()
	if old != nil {
		_ = old.Leave()
	}
	c.mirror.Reset()

	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	a := &attempt{username: username, avatar: avatar, roomID: roomID, cancel: cancel}
	c.current = a
	c.mode = ModeConnecting
	c.errText = ""
	a.timer = c.cfg.Clock.AfterFunc(c.cfg.ConnectTimeout, func() {
		log.Info().Str("room_id", roomID).Msg("real-time connection timeout, using simulated mode")
		c.fallback(a, ErrTextConnectTimeout, true)
	})

	go c.dial(ctx, a)
}

func (c *Client) dial(ctx context.Context, a *attempt) {
	conn, err := c.cfg.Dial(ctx, c.cfg.ServerURL)
	if err != nil {
		log.Warn().Err(err).Str("url", c.cfg.ServerURL).Msg("real-time connect failed")
		c.fallback(a, ErrTextConnectFailed, false)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != a || a.fellBack {
		conn.Close()
		return
	}
	a.timer.Stop()

	join := domain.JoinRoomPayload{RoomID: a.roomID, Username: a.username, Avatar: a.avatar}
	t, err := newWebsocketTransport(conn, c.mirror, join, func(err error) {
		c.fallback(a, ErrTextConnectionLost, false)
	})
	if err != nil {
		conn.Close()
		log.Warn().Err(err).Msg("join_room send failed")
		c.fallbackLocked(a, ErrTextConnectFailed)
		return
	}
	c.transport = t
	c.mode = ModeRealtime
	c.roomID = a.roomID
	c.connected = true
	log.Info().Str("room_id", a.roomID).Msg("connected to real-time server")
}

// fallback switches attempt a to simulated mode unless it is stale or already fell back.
// pendingOnly limits the switch to attempts that have not connected yet (the timeout).
func (c *Client) fallback(a *attempt, reason string, pendingOnly bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pendingOnly && c.mode != ModeConnecting {
		return
	}
	c.fallbackLocked(a, reason)
}

func (c *Client) fallbackLocked(a *attempt, reason string) {
	if c.current != a || a.fellBack {
		return
	}
	a.fellBack = true
	a.cancel()
	a.timer.Stop()
	if ws, ok := c.transport.(*websocketTransport); ok {
		ws.abort()
	}

	log.Info().Str("reason", reason).Msg("falling back to simulated mode")
	c.errText = reason
	c.transport = startSimulated(c.mirror, c.cfg.Clock, c.cfg.Rand, a.username, a.avatar, c.cfg.PeerInterval, c.cfg.AnswerDelay)
	c.mode = ModeSimulated
	c.roomID = a.roomID
	c.connected = true
}

// StartGame asks the server to start; in simulated mode it only logs.
func (c *Client) StartGame(ctx context.Context) error {
	t, err := c.activeTransport()
	if err != nil {
		return err
	}
	return t.StartGame(ctx)
}

// SubmitAnswer forwards the submitter-computed points.
func (c *Client) SubmitAnswer(ctx context.Context, submission domain.AnswerSubmission) error {
	t, err := c.activeTransport()
	if err != nil {
		return err
	}
	return t.SubmitAnswer(ctx, submission)
}

// LeaveRoom clears all local state, cancels a pending connect and closes the transport.
func (c *Client) LeaveRoom() error {
	c.mu.Lock()
	old := c.teardownLocked()
	c.mu.Unlock()

	var err error
	if old != nil {
		err = old.Leave()
	}
	c.mirror.Reset()
	return err
}

// teardownLocked invalidates the current attempt and hands back its transport, which the
// caller must Leave outside the lock.
func (c *Client) teardownLocked() Transport {
	if a := c.current; a != nil {
		a.cancel()
		if a.timer != nil {
			a.timer.Stop()
		}
	}
	old := c.transport
	c.current = nil
	c.transport = nil
	c.mode = ModeIdle
	c.roomID = ""
	c.connected = false
	return old
}

func (c *Client) activeTransport() (Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return nil, ErrNoRoom
	}
	return c.transport, nil
}

func (c *Client) Players() []domain.Participant { return c.mirror.Players() }

// Watch streams roster changes; see Mirror.Watch.
func (c *Client) Watch() (<-chan []domain.Participant, func()) { return c.mirror.Watch() }

func (c *Client) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// Err returns the last connection error indicator, or "" when none occurred.
func (c *Client) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errText
}
