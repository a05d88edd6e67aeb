package app_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

func TestEngineScoringScenario(t *testing.T) {
	store := newFakeStore()
	tasks := app.NewTasks(8, time.Second)
	engine := app.NewEngine(store, staticSource(app.FallbackQuestions()), tasks, app.WithClock(clockwork.NewFakeClock()))
	defer engine.Close()

	start := engine.Start(context.Background(), "player-1")
	if !start.Success {
		t.Fatalf("start failed: %s", start.Error)
	}
	if start.Total != 5 || start.Question == nil || start.Question.ID != "1" {
		t.Fatalf("unexpected start result %+v", start)
	}

	// Question 1: correct with 15 seconds left, streak 0.
	tickN(t, engine, 5)
	res := submit(t, engine, 0)
	expectResult(t, res, true, 17, 1, 17, domain.OutcomeNextQuestion)

	// Question 2: correct with 10 seconds left, streak 1.
	tickN(t, engine, 10)
	res = submit(t, engine, 0)
	expectResult(t, res, true, 17, 2, 34, domain.OutcomeNextQuestion)

	// Question 3: runs out of time.
	tickN(t, engine, 19)
	res, expired, err := engine.Tick()
	if err != nil || !expired {
		t.Fatalf("expected expiry, got expired=%v err=%v", expired, err)
	}
	expectResult(t, res, false, 0, 0, 34, domain.OutcomeNextQuestion)

	// Question 4: correct immediately, Question 5: wrong.
	res = submit(t, engine, 0)
	expectResult(t, res, true, 20, 1, 54, domain.OutcomeNextQuestion)
	res = submit(t, engine, 0)
	expectResult(t, res, false, 0, 0, 54, domain.OutcomeFinished)

	if _, err := engine.SubmitAnswer(1); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive after completion, got %v", err)
	}
	snap := engine.Snapshot()
	if snap.Status != domain.SessionCompleted || snap.Score != 54 || snap.CurrentIndex != 5 {
		t.Fatalf("unexpected final session %+v", snap)
	}

	tasks.Wait()
	answers, completions := store.results()
	if len(answers) != 5 {
		t.Fatalf("expected 5 answer records, got %d", len(answers))
	}
	if answers[0].ResponseTime != 5 || answers[0].Points != 17 || !answers[0].Correct {
		t.Fatalf("unexpected first answer record %+v", answers[0])
	}
	if answers[2].SelectedOption != domain.NoAnswer || answers[2].ResponseTime != app.DefaultQuestionTime {
		t.Fatalf("unexpected timed-out answer record %+v", answers[2])
	}
	if len(completions) != 1 || completions[start.SessionID] != 54 {
		t.Fatalf("expected a single completion with score 54, got %v", completions)
	}
}

func TestEngineStartFailureIsReported(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("database down")
	engine := app.NewEngine(store, staticSource(app.FallbackQuestions()), app.NewTasks(1, time.Second), app.WithClock(clockwork.NewFakeClock()))

	res := engine.Start(context.Background(), "player-1")
	if res.Success {
		t.Fatalf("expected failure result")
	}
	if !strings.Contains(res.Error, "database down") {
		t.Fatalf("expected error message to carry cause, got %q", res.Error)
	}
	if _, _, err := engine.Tick(); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected inactive session, got %v", err)
	}
	if snap := engine.Snapshot(); snap.Status != domain.SessionCreated {
		t.Fatalf("expected created status, got %s", snap.Status)
	}
}

func TestEngineStartTwiceFails(t *testing.T) {
	engine := app.NewEngine(newFakeStore(), staticSource(app.FallbackQuestions()), app.NewTasks(1, time.Second), app.WithClock(clockwork.NewFakeClock()))
	defer engine.Close()

	if res := engine.Start(context.Background(), "p"); !res.Success {
		t.Fatalf("first start failed: %s", res.Error)
	}
	if res := engine.Start(context.Background(), "p"); res.Success || res.Error != domain.ErrSessionStarted.Error() {
		t.Fatalf("expected second start to fail, got %+v", res)
	}
}

func TestEngineFallsBackWhenQuestionsUnavailable(t *testing.T) {
	sources := map[string]app.QuestionSource{
		"error": failingSource{err: errors.New("timeout")},
		"empty": staticSource(nil),
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			engine := app.NewEngine(newFakeStore(), src, app.NewTasks(1, time.Second), app.WithClock(clockwork.NewFakeClock()))
			defer engine.Close()
			res := engine.Start(context.Background(), "p")
			if !res.Success || res.Total != len(app.FallbackQuestions()) {
				t.Fatalf("expected fallback batch, got %+v", res)
			}
		})
	}
}

func TestEngineRejectsInvalidOption(t *testing.T) {
	engine := app.NewEngine(newFakeStore(), staticSource(app.FallbackQuestions()), app.NewTasks(1, time.Second), app.WithClock(clockwork.NewFakeClock()))
	defer engine.Close()
	engine.Start(context.Background(), "p")

	for _, option := range []int{4, -2} {
		if _, err := engine.SubmitAnswer(option); !errors.Is(err, domain.ErrInvalidOption) {
			t.Fatalf("option %d: expected ErrInvalidOption, got %v", option, err)
		}
	}
	if snap := engine.Snapshot(); snap.CurrentIndex != 0 || snap.TimeRemaining != app.DefaultQuestionTime {
		t.Fatalf("invalid option must not advance the session: %+v", snap)
	}
}

func TestEngineTimerExpiresQuestion(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timeouts := make(chan domain.AnswerResult, 1)
	engine := app.NewEngine(newFakeStore(), staticSource(app.FallbackQuestions()), app.NewTasks(4, time.Second),
		app.WithClock(clock),
		app.WithQuestionTime(3),
		app.WithTimeoutHandler(func(res domain.AnswerResult) { timeouts <- res }),
	)
	defer engine.Close()
	engine.Start(context.Background(), "p")

	for want := 2; want >= 1; want-- {
		clock.Advance(time.Second)
		waitFor(t, func() bool { return engine.Snapshot().TimeRemaining == want })
	}
	clock.Advance(time.Second)

	select {
	case res := <-timeouts:
		if res.Correct || res.Points != 0 || res.Outcome != domain.OutcomeNextQuestion {
			t.Fatalf("unexpected timeout result %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timer never expired the question")
	}
	snap := engine.Snapshot()
	if snap.CurrentIndex != 1 || snap.TimeRemaining != 3 {
		t.Fatalf("expected second question armed with full budget, got %+v", snap)
	}
}

func TestEngineSubmitAndExpiryScoreOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		store := newFakeStore()
		tasks := app.NewTasks(4, time.Second)
		one := app.FallbackQuestions()[:1]
		engine := app.NewEngine(store, staticSource(one), tasks, app.WithClock(clockwork.NewFakeClock()), app.WithQuestionTime(1))
		engine.Start(context.Background(), "p")

		var wg sync.WaitGroup
		var mu sync.Mutex
		scored := 0
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := engine.SubmitAnswer(0); err == nil {
				mu.Lock()
				scored++
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			if _, expired, _ := engine.Tick(); expired {
				mu.Lock()
				scored++
				mu.Unlock()
			}
		}()
		wg.Wait()
		tasks.Wait()

		answers, completions := store.results()
		if scored != 1 || len(answers) != 1 || len(completions) != 1 {
			t.Fatalf("expected exactly one scoring, got scored=%d answers=%d completions=%d", scored, len(answers), len(completions))
		}
		engine.Close()
	}
}

func TestEngineCloseStopsMutation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := app.NewEngine(newFakeStore(), staticSource(app.FallbackQuestions()), app.NewTasks(1, time.Second), app.WithClock(clock))
	engine.Start(context.Background(), "p")
	engine.Close()

	clock.Advance(30 * time.Second)
	if _, err := engine.SubmitAnswer(0); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if snap := engine.Snapshot(); snap.CurrentIndex != 0 || snap.Score != 0 {
		t.Fatalf("closed session mutated: %+v", snap)
	}
}

func TestEngineProgressAndPublisher(t *testing.T) {
	pub := &fakePublisher{}
	tasks := app.NewTasks(4, time.Second)
	two := app.FallbackQuestions()[:2]
	engine := app.NewEngine(newFakeStore(), staticSource(two), tasks, app.WithClock(clockwork.NewFakeClock()), app.WithPublisher(pub))
	defer engine.Close()
	engine.Start(context.Background(), "p")

	if p := engine.Progress(); p.Current != 1 || p.Total != 2 || p.Percentage != 50 {
		t.Fatalf("unexpected progress %+v", p)
	}
	submit(t, engine, 0)
	if q, ok := engine.CurrentQuestion(); !ok || q.ID != "2" {
		t.Fatalf("expected second question, got %+v ok=%v", q, ok)
	}
	submit(t, engine, 0)
	if _, ok := engine.CurrentQuestion(); ok {
		t.Fatalf("expected no current question after completion")
	}

	tasks.Wait()
	if topics := pub.published(); len(topics) != 1 || topics[0] != "session.completed" {
		t.Fatalf("expected session.completed event, got %v", topics)
	}
}

func tickN(t *testing.T, engine *app.Engine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, expired, err := engine.Tick(); err != nil || expired {
			t.Fatalf("tick %d: expired=%v err=%v", i, expired, err)
		}
	}
}

func submit(t *testing.T, engine *app.Engine, option int) domain.AnswerResult {
	t.Helper()
	res, err := engine.SubmitAnswer(option)
	if err != nil {
		t.Fatalf("submit %d: %v", option, err)
	}
	return res
}

func expectResult(t *testing.T, res domain.AnswerResult, correct bool, points, streak, score int, outcome domain.Outcome) {
	t.Helper()
	if res.Correct != correct || res.Points != points || res.Streak != streak || res.Score != score || res.Outcome != outcome {
		t.Fatalf("got %+v, want correct=%v points=%d streak=%d score=%d outcome=%s", res, correct, points, streak, score, outcome)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

type fakeStore struct {
	mu          sync.Mutex
	createErr   error
	nextID      int
	answers     []domain.AnswerRecord
	completions map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{completions: make(map[string]int)}
}

func (s *fakeStore) CreateSession(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return "", s.createErr
	}
	s.nextID++
	return "session-" + string(rune('0'+s.nextID)), nil
}

func (s *fakeStore) InsertAnswer(_ context.Context, record domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, record)
	return nil
}

func (s *fakeStore) CompleteSession(_ context.Context, sessionID string, finalScore int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions[sessionID] = finalScore
	return nil
}

func (s *fakeStore) results() ([]domain.AnswerRecord, map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	completions := make(map[string]int, len(s.completions))
	for k, v := range s.completions {
		completions[k] = v
	}
	return append([]domain.AnswerRecord(nil), s.answers...), completions
}

type staticSource []domain.Question

func (s staticSource) FetchQuestions(_ context.Context, limit int) ([]domain.Question, error) {
	if len(s) > limit {
		return s[:limit], nil
	}
	return s, nil
}

type failingSource struct{ err error }

func (s failingSource) FetchQuestions(context.Context, int) ([]domain.Question, error) {
	return nil, s.err
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *fakePublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}
