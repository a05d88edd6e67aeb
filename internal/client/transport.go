package client

import (
	"context"

	"trivia-service/internal/domain"
)

// Mode is the strategy currently backing a Client.
type Mode string

const (
	ModeIdle       Mode = "idle"
	ModeConnecting Mode = "connecting"
	ModeRealtime   Mode = "realtime"
	ModeSimulated  Mode = "simulated"
)

// Transport is one way of keeping the Mirror populated. Both strategies write into the
// same Mirror; the Client picks one per Connect and never switches back.
type Transport interface {
	Mode() Mode
	StartGame(ctx context.Context) error
	SubmitAnswer(ctx context.Context, submission domain.AnswerSubmission) error
	// Leave tells the other side (if any) and releases every resource.
	Leave() error
}
