package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"trivia-service/internal/app"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/memory"
)

func TestPlaySessionAllCorrect(t *testing.T) {
	store := memory.NewStore()
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(app.FallbackQuestions()), time.Minute)
	tasks := app.NewTasks(8, time.Second)

	var out bytes.Buffer
	in := strings.NewReader("1\n1\n2\n1\n2\n")
	session, err := playSession(context.Background(), store, questions, tasks, in, &out, "p1",
		app.WithClock(clockwork.NewFakeClock()))
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	tasks.Wait()
	tasks.Close()

	// Every answer lands with the full budget left, so only the streak bonus grows.
	if session.Status != domain.SessionCompleted || session.Score != 120 {
		t.Fatalf("unexpected session %+v", session)
	}
	if !strings.Contains(out.String(), "Final score: 120") {
		t.Fatalf("missing final score in output:\n%s", out.String())
	}
	if got := len(store.Answers(session.ID)); got != 5 {
		t.Fatalf("expected 5 persisted answers, got %d", got)
	}
}

func TestPlaySessionSkipsAndRejectsInput(t *testing.T) {
	store := memory.NewStore()
	tasks := app.NewTasks(8, time.Second)
	defer tasks.Close()

	var out bytes.Buffer
	in := strings.NewReader("9\ns\n")
	session, err := playSession(context.Background(), store, nil, tasks, in, &out, "p1",
		app.WithClock(clockwork.NewFakeClock()))
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if !strings.Contains(out.String(), "Enter 1-4") {
		t.Fatalf("expected input hint, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Input closed") {
		t.Fatalf("expected abandon notice, got:\n%s", out.String())
	}
	if session.CurrentIndex != 1 || session.Score != 0 || session.Status != domain.SessionActive {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestParseOption(t *testing.T) {
	cases := map[string]int{"1": 0, " 4 ": 3, "": domain.NoAnswer, "S": domain.NoAnswer}
	for in, want := range cases {
		got, err := parseOption(in)
		if err != nil || got != want {
			t.Fatalf("parseOption(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"0", "5", "x"} {
		if _, err := parseOption(in); err == nil {
			t.Fatalf("parseOption(%q) should fail", in)
		}
	}
}
