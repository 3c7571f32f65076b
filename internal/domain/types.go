package domain

import (
	"fmt"
	"time"
)

// Mode is the game mode of a session. It is fixed at session start.
type Mode string

const (
	ModeSingle      Mode = "single"
	ModeInteractive Mode = "interactive"
	ModeFight       Mode = "fight"
	ModeCouncil     Mode = "council"
	ModeInverse     Mode = "inverse"
)

// Modes lists every supported mode in menu order.
var Modes = []Mode{ModeSingle, ModeInteractive, ModeFight, ModeCouncil, ModeInverse}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown game mode %q", s)
}

// TurnState tracks who holds the turn in a session.
type TurnState string

const (
	TurnIdle               TurnState = "idle"
	TurnRunning            TurnState = "running"
	TurnAwaitingUserInput  TurnState = "awaiting_user_input"
	TurnAwaitingUserChoice TurnState = "awaiting_user_choice"
	TurnCompleted          TurnState = "completed"
	TurnErrored            TurnState = "errored"
)

// Awaiting reports whether the session is paused for the user.
func (t TurnState) Awaiting() bool {
	return t == TurnAwaitingUserInput || t == TurnAwaitingUserChoice
}

// Session identifies one game instance. A new start discards the previous
// Session and creates a fresh one that shares the same ID.
type Session struct {
	// ID is the stable client identity, reused across games.
	ID string

	// GameID is unique per start and keys the transcript.
	GameID string

	Mode            Mode
	MysteryRevealed bool
	TurnState       TurnState

	// Solution is only populated in inverse mode and is only ever shown to
	// the narrating user.
	Solution string

	StartedAt time.Time
}

// GameRef identifies one game without any of its state.
type GameRef struct {
	GameID    string
	SessionID string
	Mode      Mode
}

// Ref returns the identity of the game s is playing.
func (s Session) Ref() GameRef {
	return GameRef{GameID: s.GameID, SessionID: s.ID, Mode: s.Mode}
}

// NewSession creates an idle session.
func NewSession(id, gameID string, mode Mode) *Session {
	return &Session{
		ID:        id,
		GameID:    gameID,
		Mode:      mode,
		TurnState: TurnIdle,
		StartedAt: time.Now(),
	}
}

// StartParams carries the model and difficulty choices for a start request.
// Each mode reads only the fields it needs.
type StartParams struct {
	Difficulty      string
	NarratorModel   string
	DetectiveModel  string
	DetectiveModel2 string
	VisionaryModel  string
	SkepticModel    string
	LeaderModel     string
}

// SaveResult is the outcome of a save-conversation exchange.
type SaveResult struct {
	OK      bool
	Message string
}
