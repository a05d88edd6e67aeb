package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"trivia-service/internal/client"
	"trivia-service/internal/config"
	"trivia-service/internal/domain"
)

// NewJoinCmd joins a multiplayer room and prints roster changes.
func NewJoinCmd(configPath *string) *cobra.Command {
	var roomID, username, avatar, serverURL string
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a multiplayer room (falls back to simulated players when offline)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if serverURL == "" {
				serverURL = cfg.Client.ServerURL
			}
			c := client.New(client.Config{
				ServerURL:      serverURL,
				ConnectTimeout: config.Duration(cfg.Client.ConnectTimeout, client.DefaultConnectTimeout),
				PeerInterval:   config.Duration(cfg.Client.PeerInterval, client.DefaultPeerInterval),
				AnswerDelay:    config.Duration(cfg.Client.AnswerDelay, client.DefaultAnswerDelay),
			})
			return runJoin(cmd.Context(), c, roomID, username, avatar, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&roomID, "room", "", "room code to join")
	cmd.Flags().StringVar(&username, "username", "Player", "display name")
	cmd.Flags().StringVar(&avatar, "avatar", "🙂", "avatar token")
	cmd.Flags().StringVar(&serverURL, "server", "", "websocket url (overrides config)")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

// runJoin prints the roster on every change and accepts the commands
// start, answer <points>, players and leave.
func runJoin(ctx context.Context, c *client.Client, roomID, username, avatar string, in io.Reader, out io.Writer) error {
	updates, cancel := c.Watch()
	defer cancel()
	done := make(chan struct{})
	defer close(done)

	c.Connect(roomID, username, avatar)
	fmt.Fprintf(out, "Joining room %s...\n", roomID)

	lines := scanLines(in, done)
	for {
		select {
		case <-ctx.Done():
			return c.LeaveRoom()
		case players := <-updates:
			printRoster(out, c.Mode(), players)
		case line, ok := <-lines:
			if !ok {
				return c.LeaveRoom()
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "start":
				report(out, c.StartGame(ctx))
			case "answer":
				points := 0
				if len(fields) > 1 {
					points, _ = strconv.Atoi(fields[1])
				}
				report(out, c.SubmitAnswer(ctx, domain.AnswerSubmission{PointsEarned: points}))
			case "players":
				printRoster(out, c.Mode(), c.Players())
			case "leave", "quit":
				return c.LeaveRoom()
			default:
				fmt.Fprintln(out, "commands: start | answer <points> | players | leave")
			}
		}
	}
}

func report(out io.Writer, err error) {
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
}

func printRoster(out io.Writer, mode client.Mode, players []domain.Participant) {
	fmt.Fprintf(out, "[%s] %s %d player(s)\n", time.Now().Format("15:04:05"), mode, len(players))
	for _, p := range players {
		marker := " "
		if p.IsCurrentPlayer {
			marker = "*"
		}
		fmt.Fprintf(out, " %s %s %-14s %5d\n", marker, p.Avatar, p.Username, p.Score)
	}
}
