package domain

import "time"

// NoAnswer is the selected option recorded when time expired or the player skipped.
const NoAnswer = -1

// OptionCount is the number of options every question carries.
const OptionCount = 4

// Question models a four-option trivia question with exactly one correct option.
type Question struct {
	ID            string              `json:"id"`
	Prompt        string              `json:"question_text"`
	Options       [OptionCount]string `json:"options"`
	CorrectOption int                 `json:"correct_answer"`
	Category      string              `json:"category,omitempty"`
}

// SessionStatus is the lifecycle state of a single-player session.
type SessionStatus string

const (
	SessionCreated   SessionStatus = "created"
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Session is one player's run through a fixed question batch.
type Session struct {
	ID            string        `json:"id"`
	PlayerID      string        `json:"playerId"`
	Questions     []Question    `json:"questions"`
	CurrentIndex  int           `json:"currentQuestionIndex"`
	Score         int           `json:"score"`
	Streak        int           `json:"streak"`
	TimeRemaining int           `json:"timeRemaining"`
	Status        SessionStatus `json:"status"`
}

// Outcome tells the caller what happened to the session after an answer.
type Outcome string

const (
	OutcomeNextQuestion Outcome = "next_question"
	OutcomeFinished     Outcome = "finished"
)

// AnswerResult summarizes the outcome of a single submission.
type AnswerResult struct {
	Correct       bool    `json:"isCorrect"`
	Points        int     `json:"points"`
	Streak        int     `json:"streak"`
	Score         int     `json:"currentScore"`
	CorrectOption int     `json:"correctAnswer"`
	Outcome       Outcome `json:"result"`
}

// StartResult is returned by a session start; failures are reported here, not as errors.
type StartResult struct {
	Success   bool      `json:"success"`
	SessionID string    `json:"sessionId,omitempty"`
	Question  *Question `json:"currentQuestion,omitempty"`
	Total     int       `json:"totalQuestions,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Progress reports how far a session has advanced.
type Progress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// AnswerRecord is the persisted form of a single answer.
type AnswerRecord struct {
	SessionID      string
	PlayerID       string
	QuestionID     string
	SelectedOption int
	Correct        bool
	Points         int
	ResponseTime   int // seconds spent on the question
}

// GameState is the coarse state of a multiplayer room.
type GameState string

const (
	GameWaiting GameState = "waiting"
	GamePlaying GameState = "playing"
)

// Participant is a room member's visible identity and score.
type Participant struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
	// IsCurrentPlayer is only set by the client-side mirror.
	IsCurrentPlayer bool `json:"isCurrentPlayer,omitempty"`
}

// RoomSnapshot is a point-in-time copy of a room.
type RoomSnapshot struct {
	RoomID    string        `json:"roomId"`
	Players   []Participant `json:"players"`
	GameState GameState     `json:"gameState"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// AnswerSubmission is the submitter-computed payload of a multiplayer answer.
type AnswerSubmission struct {
	PointsEarned   int    `json:"pointsEarned"`
	QuestionID     string `json:"questionId,omitempty"`
	SelectedOption int    `json:"selectedOption"`
}

// Profile is a player's persisted public profile.
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Country     string `json:"country"`
}
