package domain

import "errors"

var (
	// ErrSessionNotActive is returned when a session is not accepting answers.
	ErrSessionNotActive = errors.New("session is not active")
	// ErrSessionStarted is returned when start is called on a session that already left the created state.
	ErrSessionStarted = errors.New("session already started")
	// ErrSessionClosed is returned after the engine has been closed.
	ErrSessionClosed = errors.New("session closed")
	// ErrInvalidOption indicates an option index outside 0-3 that is not the no-answer sentinel.
	ErrInvalidOption = errors.New("invalid option")
	// ErrQuestionsUnavailable indicates the question source has nothing to offer.
	ErrQuestionsUnavailable = errors.New("questions unavailable")
	// ErrRoomIDRequired is returned when a join carries no room id.
	ErrRoomIDRequired = errors.New("room id required")
	// ErrNotConnected is returned when a connection id was never registered.
	ErrNotConnected = errors.New("connection not registered")
	// ErrAlreadyConnected is returned when a connection id is registered twice.
	ErrAlreadyConnected = errors.New("connection already registered")
	// ErrNotInRoom is returned when a connection acts before joining a room.
	ErrNotInRoom = errors.New("connection has not joined a room")
	// ErrRegistryClosed is returned after the room registry has been shut down.
	ErrRegistryClosed = errors.New("room registry closed")
	// ErrProfileNotFound indicates no profile exists for the user.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrUsernameTaken indicates a username collision on profile creation.
	ErrUsernameTaken = errors.New("username already taken")
)
