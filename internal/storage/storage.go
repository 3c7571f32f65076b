// Package storage defines the transcript store used to keep a record of
// every game played from this client.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a transcript does not exist.
var ErrNotFound = errors.New("transcript not found")

// Transcript is the shared record of one game. ID is the game id; several
// transcripts may carry the same SessionID.
type Transcript struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	Mode      string    `json:"mode" db:"mode"`
	Entries   []Entry   `json:"entries,omitempty" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Entry is one message shown during the game.
type Entry struct {
	ID        string    `json:"id" db:"id"`
	Lane      string    `json:"lane" db:"lane"`
	Speaker   string    `json:"speaker,omitempty" db:"speaker"`
	Text      string    `json:"text" db:"text"`
	HTML      bool      `json:"html,omitempty" db:"html"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ListOptions filters and pages List results.
type ListOptions struct {
	SessionID string
	Limit     int
	Offset    int
}

// TranscriptStore persists transcripts.
type TranscriptStore interface {
	CreateTranscript(ctx context.Context, t *Transcript) error
	AppendEntries(ctx context.Context, transcriptID string, entries []Entry) error
	GetTranscript(ctx context.Context, id string) (*Transcript, error)
	ListTranscripts(ctx context.Context, opts ListOptions) ([]*Transcript, error)
	DeleteTranscript(ctx context.Context, id string) error
	Close() error
}
