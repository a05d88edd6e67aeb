package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"trivia-service/internal/domain"
)

// DefaultQuestionTime is the per-question budget in seconds.
const DefaultQuestionTime = 20

// Engine drives one player through a fixed question batch.
// All state lives behind mu; the timer goroutine and callers meet in submitLocked,
// so every question is scored exactly once.
type Engine struct {
	store     SessionStore
	questions QuestionSource
	tasks     *Tasks
	publisher EventPublisher
	clock     clockwork.Clock
	budget    int
	batchSize int
	onTimeout func(domain.AnswerResult)

	mu         sync.Mutex
	session    domain.Session
	starting   bool
	closed     bool
	generation uint64
	ticker     clockwork.Ticker
	tickerDone chan struct{}
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock swaps the clock driving the question timer (fake clocks in tests).
func WithClock(clock clockwork.Clock) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

// WithQuestionTime sets the per-question budget in seconds.
func WithQuestionTime(seconds int) EngineOption {
	return func(e *Engine) {
		if seconds > 0 {
			e.budget = seconds
		}
	}
}

// WithBatchSize bounds the number of questions loaded on start.
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithPublisher publishes a session.completed event when the session finishes.
func WithPublisher(p EventPublisher) EngineOption {
	return func(e *Engine) { e.publisher = p }
}

// WithTimeoutHandler is called with the result of every timer-driven submission.
// It runs on the timer goroutine after the engine lock is released.
func WithTimeoutHandler(fn func(domain.AnswerResult)) EngineOption {
	return func(e *Engine) { e.onTimeout = fn }
}

func NewEngine(store SessionStore, questions QuestionSource, tasks *Tasks, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		questions: questions,
		tasks:     tasks,
		clock:     clockwork.NewRealClock(),
		budget:    DefaultQuestionTime,
		batchSize: DefaultBatchSize,
		session:   domain.Session{Status: domain.SessionCreated},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start creates the session record, loads the question batch and arms the timer for
// the first question. Creation failure is the only fatal error and is reported in the
// result rather than returned.
func (e *Engine) Start(ctx context.Context, playerID string) domain.StartResult {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.StartResult{Error: domain.ErrSessionClosed.Error()}
	}
	if e.starting || e.session.Status != domain.SessionCreated {
		e.mu.Unlock()
		return domain.StartResult{Error: domain.ErrSessionStarted.Error()}
	}
	e.starting = true
	e.mu.Unlock()

	sessionID, err := e.store.CreateSession(ctx, playerID)
	if err != nil {
		log.Error().Err(err).Str("player_id", playerID).Msg("failed to create game session")
		e.mu.Lock()
		e.starting = false
		e.mu.Unlock()
		return domain.StartResult{Error: fmt.Sprintf("create session: %v", err)}
	}

	questions := LoadBatch(ctx, e.questions, e.batchSize)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.starting = false
	if e.closed {
		return domain.StartResult{Error: domain.ErrSessionClosed.Error()}
	}
	e.session = domain.Session{
		ID:        sessionID,
		PlayerID:  playerID,
		Questions: questions,
		Status:    domain.SessionActive,
	}
	e.armLocked()

	first := questions[0]
	log.Info().
		Str("session_id", sessionID).
		Str("player_id", playerID).
		Int("questions", len(questions)).
		Msg("game session started")

	return domain.StartResult{
		Success:   true,
		SessionID: sessionID,
		Question:  &first,
		Total:     len(questions),
	}
}

// Tick consumes one second of the current question. When the budget runs out the
// question is submitted as unanswered and expired is true.
func (e *Engine) Tick() (result domain.AnswerResult, expired bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickLocked()
}

// SubmitAnswer scores option (0-3 or domain.NoAnswer) for the current question.
func (e *Engine) SubmitAnswer(option int) (domain.AnswerResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitLocked(option)
}

// Close stops the timer. The session can no longer be mutated afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
	e.closed = true
}

// Snapshot returns a copy of the session state.
func (e *Engine) Snapshot() domain.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	s.Questions = append([]domain.Question(nil), e.session.Questions...)
	return s
}

// CurrentQuestion returns the outstanding question, if any.
func (e *Engine) CurrentQuestion() (domain.Question, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Status != domain.SessionActive {
		return domain.Question{}, false
	}
	return e.session.Questions[e.session.CurrentIndex], true
}

// Progress reports the 1-based position of the current question.
func (e *Engine) Progress() domain.Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := len(e.session.Questions)
	if total == 0 {
		return domain.Progress{}
	}
	current := e.session.CurrentIndex + 1
	if current > total {
		current = total
	}
	return domain.Progress{
		Current:    current,
		Total:      total,
		Percentage: float64(current) / float64(total) * 100,
	}
}

func (e *Engine) tickLocked() (domain.AnswerResult, bool, error) {
	if err := e.activeLocked(); err != nil {
		return domain.AnswerResult{}, false, err
	}
	if e.session.TimeRemaining > 0 {
		e.session.TimeRemaining--
	}
	if e.session.TimeRemaining > 0 {
		return domain.AnswerResult{}, false, nil
	}
	log.Debug().Str("session_id", e.session.ID).Int("question_index", e.session.CurrentIndex).Msg("time up")
	e.stopTimerLocked()
	result, err := e.submitLocked(domain.NoAnswer)
	return result, err == nil, err
}

func (e *Engine) submitLocked(option int) (domain.AnswerResult, error) {
	if err := e.activeLocked(); err != nil {
		return domain.AnswerResult{}, err
	}
	if option != domain.NoAnswer && (option < 0 || option >= domain.OptionCount) {
		return domain.AnswerResult{}, fmt.Errorf("%w: %d", domain.ErrInvalidOption, option)
	}
	e.stopTimerLocked()

	question := e.session.Questions[e.session.CurrentIndex]
	remaining := e.session.TimeRemaining
	correct := option != domain.NoAnswer && option == question.CorrectOption
	points, streak := Award(correct, remaining, e.session.Streak)
	e.session.Score += points
	e.session.Streak = streak

	record := domain.AnswerRecord{
		SessionID:      e.session.ID,
		PlayerID:       e.session.PlayerID,
		QuestionID:     question.ID,
		SelectedOption: option,
		Correct:        correct,
		Points:         points,
		ResponseTime:   e.budget - remaining,
	}
	e.tasks.Submit("record answer", func(ctx context.Context) error {
		return e.store.InsertAnswer(ctx, record)
	})

	e.session.CurrentIndex++
	outcome := domain.OutcomeNextQuestion
	if e.session.CurrentIndex >= len(e.session.Questions) {
		outcome = domain.OutcomeFinished
		e.finishLocked()
	} else {
		e.armLocked()
	}

	return domain.AnswerResult{
		Correct:       correct,
		Points:        points,
		Streak:        e.session.Streak,
		Score:         e.session.Score,
		CorrectOption: question.CorrectOption,
		Outcome:       outcome,
	}, nil
}

func (e *Engine) finishLocked() {
	e.session.Status = domain.SessionCompleted
	e.session.TimeRemaining = 0
	sessionID, playerID, score := e.session.ID, e.session.PlayerID, e.session.Score

	log.Info().Str("session_id", sessionID).Int("final_score", score).Msg("game session completed")

	e.tasks.Submit("complete session", func(ctx context.Context) error {
		return e.store.CompleteSession(ctx, sessionID, score)
	})
	if e.publisher != nil {
		e.tasks.Submit("publish session completed", func(ctx context.Context) error {
			return e.publisher.Publish(ctx, "session.completed", map[string]any{
				"sessionId":  sessionID,
				"playerId":   playerID,
				"finalScore": score,
			})
		})
	}
}

func (e *Engine) activeLocked() error {
	if e.closed {
		return domain.ErrSessionClosed
	}
	if e.session.Status != domain.SessionActive {
		return domain.ErrSessionNotActive
	}
	return nil
}

// armLocked resets the budget and starts a ticker for the current question.
func (e *Engine) armLocked() {
	e.stopTimerLocked()
	e.session.TimeRemaining = e.budget
	e.generation++
	ticker := e.clock.NewTicker(time.Second)
	done := make(chan struct{})
	e.ticker = ticker
	e.tickerDone = done
	go e.runTimer(e.generation, ticker, done)
}

func (e *Engine) stopTimerLocked() {
	if e.ticker == nil {
		return
	}
	e.ticker.Stop()
	close(e.tickerDone)
	e.ticker = nil
	e.tickerDone = nil
	e.generation++
}

func (e *Engine) runTimer(generation uint64, ticker clockwork.Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.Chan():
			e.mu.Lock()
			if e.generation != generation {
				// A submission or close won the race; this ticker is stale.
				e.mu.Unlock()
				return
			}
			result, expired, err := e.tickLocked()
			e.mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Msg("timer tick rejected")
				return
			}
			if expired {
				if e.onTimeout != nil {
					e.onTimeout(result)
				}
				return
			}
		}
	}
}
