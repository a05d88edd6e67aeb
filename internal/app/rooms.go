package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"trivia-service/internal/domain"
)

const subscriberBuffer = 64

// RoomRegistry owns every live room of the process and fans room events out to the
// connections subscribed to it. Membership changes and the broadcasts they cause happen
// under one lock, so members never observe a half-applied join or leave.
type RoomRegistry struct {
	questions QuestionSource
	batchSize int
	mirror    RoomMirror
	publisher EventPublisher
	tasks     *Tasks
	now       func() time.Time

	mu      sync.Mutex
	rooms   map[string]*room
	members map[string]string // connection id -> room id
	subs    map[string]chan domain.Message
	closed  bool

	pendingMirror map[string]domain.RoomSnapshot
	mirroring     map[string]bool
}

type room struct {
	id           string
	state        domain.GameState
	participants map[string]*member
	order        []string
	questions    []domain.Question
}

// member pairs the broadcast-visible participant record with bookkeeping used for ranking.
type member struct {
	participant domain.Participant
	lastUpdated time.Time
}

// RegistryOption customizes a RoomRegistry.
type RegistryOption func(*RoomRegistry)

// WithRoomMirror mirrors room snapshots (best-effort) after every change.
func WithRoomMirror(m RoomMirror) RegistryOption {
	return func(r *RoomRegistry) { r.mirror = m }
}

// WithRoomPublisher publishes answer events for rooms.
func WithRoomPublisher(p EventPublisher) RegistryOption {
	return func(r *RoomRegistry) { r.publisher = p }
}

// WithRegistryClock allows deterministic timestamps in tests.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *RoomRegistry) { r.now = now }
}

// WithRoomBatchSize bounds the number of questions loaded when a game starts.
func WithRoomBatchSize(n int) RegistryOption {
	return func(r *RoomRegistry) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewRoomRegistry(questions QuestionSource, tasks *Tasks, opts ...RegistryOption) *RoomRegistry {
	r := &RoomRegistry{
		questions: questions,
		batchSize: DefaultBatchSize,
		tasks:     tasks,
		now:       time.Now,
		rooms:     make(map[string]*room),
		members:   make(map[string]string),
		subs:      make(map[string]chan domain.Message),

		pendingMirror: make(map[string]domain.RoomSnapshot),
		mirroring:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers a connection and returns the channel its outbound messages arrive on.
// The channel is closed by Disconnect or Close.
func (r *RoomRegistry) Connect(connID string) (<-chan domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, domain.ErrRegistryClosed
	}
	if _, ok := r.subs[connID]; ok {
		return nil, domain.ErrAlreadyConnected
	}
	ch := make(chan domain.Message, subscriberBuffer)
	r.subs[connID] = ch
	return ch, nil
}

// Join adds (or overwrites) the participant for connID in roomID, creating the room on
// first use. Other members receive player_joined; the joiner receives room_state.
func (r *RoomRegistry) Join(roomID, connID, username, avatar string) (domain.RoomSnapshot, error) {
	if roomID == "" {
		return domain.RoomSnapshot{}, domain.ErrRoomIDRequired
	}

	r.mu.Lock()
	if _, ok := r.subs[connID]; !ok {
		r.mu.Unlock()
		return domain.RoomSnapshot{}, domain.ErrNotConnected
	}
	var left *domain.RoomSnapshot
	if prev, ok := r.members[connID]; ok && prev != roomID {
		left = r.removeLocked(connID)
	}

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{
			id:           roomID,
			state:        domain.GameWaiting,
			participants: make(map[string]*member),
		}
		r.rooms[roomID] = rm
		log.Info().Str("room_id", roomID).Msg("room created")
	}

	if _, exists := rm.participants[connID]; !exists {
		rm.order = append(rm.order, connID)
	}
	p := domain.Participant{
		ID:        connID,
		Username:  username,
		Avatar:    avatar,
		Score:     0,
		Connected: true,
	}
	rm.participants[connID] = &member{participant: p, lastUpdated: r.now()}
	r.members[connID] = roomID

	r.broadcastLocked(rm, domain.NewMessage(domain.MsgPlayerJoined, domain.PlayerJoinedPayload{
		PlayerID:  p.ID,
		Username:  p.Username,
		Avatar:    p.Avatar,
		Score:     p.Score,
		Connected: p.Connected,
	}), connID)

	snapshot := r.snapshotLocked(rm)
	r.deliverLocked(connID, domain.NewMessage(domain.MsgRoomState, snapshot))
	if left != nil {
		r.mirrorLocked(*left)
	}
	r.mirrorLocked(snapshot)
	r.mu.Unlock()

	log.Info().
		Str("room_id", roomID).
		Str("connection_id", connID).
		Str("username", username).
		Int("players", len(snapshot.Players)).
		Msg("player joined room")

	return snapshot, nil
}

// StartGame moves the connection's room to playing and broadcasts the first question.
func (r *RoomRegistry) StartGame(ctx context.Context, connID string) error {
	r.mu.Lock()
	roomID, ok := r.members[connID]
	r.mu.Unlock()
	if !ok {
		return domain.ErrNotInRoom
	}

	// Question I/O happens outside the lock.
	questions := LoadBatch(ctx, r.questions, r.batchSize)

	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	if !ok || r.members[connID] != roomID {
		r.mu.Unlock()
		return domain.ErrNotInRoom
	}
	rm.state = domain.GamePlaying
	rm.questions = questions
	r.broadcastLocked(rm, domain.NewMessage(domain.MsgGameStarted, domain.GameStartedPayload{
		Question:      questions[0],
		QuestionIndex: 0,
	}), "")
	r.mirrorLocked(r.snapshotLocked(rm))
	r.mu.Unlock()

	log.Info().Str("room_id", roomID).Int("questions", len(questions)).Msg("room game started")
	return nil
}

// SubmitAnswer applies the submitter-computed points to the submitter's running score and
// broadcasts answer_result followed by ranking_update to the whole room.
func (r *RoomRegistry) SubmitAnswer(connID string, submission domain.AnswerSubmission) (domain.AnswerResultPayload, error) {
	r.mu.Lock()
	roomID, ok := r.members[connID]
	if !ok {
		r.mu.Unlock()
		return domain.AnswerResultPayload{}, domain.ErrNotInRoom
	}
	rm := r.rooms[roomID]
	m := rm.participants[connID]

	points := submission.PointsEarned
	if points < 0 {
		points = 0
	}
	m.participant.Score += points
	m.lastUpdated = r.now()

	result := domain.AnswerResultPayload{
		PlayerID:     connID,
		Username:     m.participant.Username,
		PointsEarned: points,
		NewScore:     m.participant.Score,
	}
	r.broadcastLocked(rm, domain.NewMessage(domain.MsgAnswerResult, result), "")
	r.broadcastLocked(rm, domain.NewMessage(domain.MsgRankingUpdate, domain.RankingUpdatePayload{
		Players: r.rankingLocked(rm),
	}), "")
	r.mirrorLocked(r.snapshotLocked(rm))
	r.mu.Unlock()

	if r.publisher != nil {
		r.tasks.Submit("publish room answer", func(ctx context.Context) error {
			return r.publisher.Publish(ctx, "room.answer", map[string]any{
				"roomId":       roomID,
				"playerId":     result.PlayerID,
				"pointsEarned": result.PointsEarned,
				"newScore":     result.NewScore,
			})
		})
	}
	return result, nil
}

// Leave removes the connection from its room and tells the remaining members.
// The connection stays registered and may join again.
func (r *RoomRegistry) Leave(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snapshot := r.removeLocked(connID); snapshot != nil {
		r.mirrorLocked(*snapshot)
	}
}

// Disconnect removes the connection from its room and closes its outbound channel.
func (r *RoomRegistry) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snapshot := r.removeLocked(connID); snapshot != nil {
		r.mirrorLocked(*snapshot)
	}
	if ch, ok := r.subs[connID]; ok {
		delete(r.subs, connID)
		close(ch)
	}
}

// Room returns a snapshot of roomID.
func (r *RoomRegistry) Room(roomID string) (domain.RoomSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return domain.RoomSnapshot{}, false
	}
	return r.snapshotLocked(rm), true
}

// Close drops every room and closes every subscriber channel.
func (r *RoomRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
	r.rooms = make(map[string]*room)
	r.members = make(map[string]string)
}

// removeLocked returns the snapshot of the room the connection left, or nil.
// Empty rooms are dropped; their snapshot has no players.
func (r *RoomRegistry) removeLocked(connID string) *domain.RoomSnapshot {
	roomID, ok := r.members[connID]
	if !ok {
		return nil
	}
	delete(r.members, connID)
	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	delete(rm.participants, connID)
	for i, id := range rm.order {
		if id == connID {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			break
		}
	}

	log.Info().Str("room_id", roomID).Str("connection_id", connID).Msg("player left room")

	r.broadcastLocked(rm, domain.NewMessage(domain.MsgPlayerLeft, domain.PlayerLeftPayload{PlayerID: connID}), "")
	snapshot := r.snapshotLocked(rm)
	if len(rm.participants) == 0 {
		delete(r.rooms, roomID)
		log.Info().Str("room_id", roomID).Msg("room empty, removed")
	}
	return &snapshot
}

func (r *RoomRegistry) broadcastLocked(rm *room, msg domain.Message, except string) {
	for _, id := range rm.order {
		if id == except {
			continue
		}
		r.deliverLocked(id, msg)
	}
}

func (r *RoomRegistry) deliverLocked(connID string, msg domain.Message) {
	ch, ok := r.subs[connID]
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		// Slow consumer: drop the oldest queued message so broadcasts never block.
		select {
		case <-ch:
		default:
		}
		ch <- msg
		log.Warn().Str("connection_id", connID).Msg("subscriber buffer full, dropped oldest message")
	}
}

func (r *RoomRegistry) snapshotLocked(rm *room) domain.RoomSnapshot {
	players := make([]domain.Participant, 0, len(rm.order))
	for _, id := range rm.order {
		players = append(players, rm.participants[id].participant)
	}
	return domain.RoomSnapshot{
		RoomID:    rm.id,
		Players:   players,
		GameState: rm.state,
		UpdatedAt: r.now(),
	}
}

// rankingLocked orders players by score desc, then by who reached the score first, then name.
func (r *RoomRegistry) rankingLocked(rm *room) []domain.Participant {
	members := make([]*member, 0, len(rm.participants))
	for _, id := range rm.order {
		members = append(members, rm.participants[id])
	}
	sort.SliceStable(members, func(i, j int) bool {
		pi, pj := members[i], members[j]
		if pi.participant.Score != pj.participant.Score {
			return pi.participant.Score > pj.participant.Score
		}
		if !pi.lastUpdated.Equal(pj.lastUpdated) {
			return pi.lastUpdated.Before(pj.lastUpdated)
		}
		return pi.participant.Username < pj.participant.Username
	})
	players := make([]domain.Participant, len(members))
	for i, m := range members {
		players[i] = m.participant
	}
	return players
}

// mirrorLocked queues snapshot for the mirror. Writes for one room are applied in
// mutation order by a single drain task; snapshots queued while it runs collapse to the
// newest one.
func (r *RoomRegistry) mirrorLocked(snapshot domain.RoomSnapshot) {
	if r.mirror == nil {
		return
	}
	r.pendingMirror[snapshot.RoomID] = snapshot
	if r.mirroring[snapshot.RoomID] {
		return
	}
	r.mirroring[snapshot.RoomID] = true
	roomID := snapshot.RoomID
	if !r.tasks.Submit("mirror room", func(ctx context.Context) error { return r.drainMirror(ctx, roomID) }) {
		// Left pending; the next change to the room retries.
		delete(r.mirroring, roomID)
	}
}

func (r *RoomRegistry) drainMirror(ctx context.Context, roomID string) error {
	for {
		r.mu.Lock()
		snapshot, ok := r.pendingMirror[roomID]
		if !ok {
			delete(r.mirroring, roomID)
			r.mu.Unlock()
			return nil
		}
		delete(r.pendingMirror, roomID)
		r.mu.Unlock()

		var err error
		if len(snapshot.Players) == 0 {
			err = r.mirror.DeleteRoom(ctx, roomID)
		} else {
			err = r.mirror.SaveRoom(ctx, snapshot)
		}
		if err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Msg("room mirror write failed")
		}
	}
}
