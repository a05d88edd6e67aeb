package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

// NewPlayCmd runs a single-player session in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	var playerID string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a timed single-player trivia session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			b, err := openBackends(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			tasks := newTasks(cfg)
			defer tasks.Close()

			opts := []app.EngineOption{
				app.WithQuestionTime(cfg.Game.QuestionSeconds),
				app.WithBatchSize(cfg.Questions.BatchSize),
			}
			if b.publisher != nil {
				opts = append(opts, app.WithPublisher(b.publisher))
			}
			_, err = playSession(cmd.Context(), b.sessions, b.questions, tasks, cmd.InOrStdin(), cmd.OutOrStdout(), playerID, opts...)
			return err
		},
	}
	cmd.Flags().StringVar(&playerID, "player", "guest", "player id recorded with the session")
	return cmd
}

// playSession drives one engine from line-based input: 1-4 picks an option, "s" or an
// empty line skips. Unanswered questions time out on the engine's own timer.
func playSession(ctx context.Context, store app.SessionStore, questions app.QuestionSource, tasks *app.Tasks,
	in io.Reader, out io.Writer, playerID string, opts ...app.EngineOption) (domain.Session, error) {
	done := make(chan struct{})
	defer close(done)
	timeouts := make(chan domain.AnswerResult, 1)
	opts = append(opts, app.WithTimeoutHandler(func(r domain.AnswerResult) {
		select {
		case timeouts <- r:
		case <-done:
		}
	}))

	engine := app.NewEngine(store, questions, tasks, opts...)
	defer engine.Close()

	start := engine.Start(ctx, playerID)
	if !start.Success {
		return domain.Session{}, fmt.Errorf("start session: %s", start.Error)
	}
	printQuestion(out, engine.Progress(), *start.Question)

	lines := scanLines(in, done)
	for {
		var result domain.AnswerResult
		select {
		case <-ctx.Done():
			return engine.Snapshot(), ctx.Err()
		case result = <-timeouts:
			fmt.Fprintln(out, "Time's up!")
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out, "Input closed, abandoning session.")
				return engine.Snapshot(), nil
			}
			option, err := parseOption(line)
			if err != nil {
				fmt.Fprintln(out, "Enter 1-4, or s to skip.")
				continue
			}
			result, err = engine.SubmitAnswer(option)
			if errors.Is(err, domain.ErrSessionNotActive) {
				return engine.Snapshot(), nil
			}
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
		}

		printResult(out, result)
		if result.Outcome == domain.OutcomeFinished {
			session := engine.Snapshot()
			fmt.Fprintf(out, "Final score: %d\n", session.Score)
			return session, nil
		}
		if q, ok := engine.CurrentQuestion(); ok {
			printQuestion(out, engine.Progress(), q)
		}
	}
}

func parseOption(line string) (int, error) {
	line = strings.TrimSpace(strings.ToLower(line))
	if line == "" || line == "s" {
		return domain.NoAnswer, nil
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > domain.OptionCount {
		return 0, fmt.Errorf("invalid option %q", line)
	}
	return n - 1, nil
}

func printQuestion(out io.Writer, p domain.Progress, q domain.Question) {
	fmt.Fprintf(out, "\nQuestion %d/%d: %s\n", p.Current, p.Total, q.Prompt)
	for i, opt := range q.Options {
		fmt.Fprintf(out, "  %d) %s\n", i+1, opt)
	}
}

func printResult(out io.Writer, r domain.AnswerResult) {
	if r.Correct {
		fmt.Fprintf(out, "Correct! +%d points (streak %d, score %d)\n", r.Points, r.Streak, r.Score)
		return
	}
	fmt.Fprintf(out, "Wrong, the answer was %d. Score %d\n", r.CorrectOption+1, r.Score)
}

// scanLines streams input lines until EOF or done.
func scanLines(in io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}
