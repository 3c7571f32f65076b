// Package conversation records the shared side of every game into a
// transcript store.
package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/blackstories-client/internal/domain"
	"github.com/tjfontaine/blackstories-client/internal/session"
	"github.com/tjfontaine/blackstories-client/internal/storage"
	"github.com/tjfontaine/blackstories-client/internal/view"
)

const persistTimeout = 5 * time.Second

var _ session.Recorder = (*Recorder)(nil)

// Recorder appends shared message commands to a transcript per game. It
// best-effort logs on failure without failing the game path.
type Recorder struct {
	store  storage.TranscriptStore
	logger *slog.Logger

	mu      sync.Mutex
	created map[string]bool
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store storage.TranscriptStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:   store,
		logger:  logger,
		created: make(map[string]bool),
	}
}

// Record stores the shared messages in cmds under game.
func (r *Recorder) Record(ctx context.Context, game domain.GameRef, cmds []view.Command) {
	if r == nil || r.store == nil || game.GameID == "" {
		return
	}

	var entries []storage.Entry
	for _, c := range cmds {
		if c.Kind != view.KindMessage || c.Audience != view.AudienceShared {
			continue
		}
		entries = append(entries, storage.Entry{
			ID:      "ent_" + uuid.New().String(),
			Lane:    string(c.Lane),
			Speaker: c.Speaker,
			Text:    c.Text,
			HTML:    c.HTML,
		})
	}
	if len(entries) == 0 {
		return
	}

	// Decouple persistence from the caller so a cancelled exchange still
	// leaves a transcript; still enforce a short timeout.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.created[game.GameID] {
		t := &storage.Transcript{
			ID:        game.GameID,
			SessionID: game.SessionID,
			Mode:      string(game.Mode),
		}
		if err := r.store.CreateTranscript(persistCtx, t); err != nil {
			r.logger.Error("failed to create transcript",
				slog.String("game_id", game.GameID),
				slog.String("session_id", game.SessionID),
				slog.String("error", err.Error()),
			)
			return
		}
		r.created[game.GameID] = true
	}

	if err := r.store.AppendEntries(persistCtx, game.GameID, entries); err != nil {
		r.logger.Error("failed to store transcript entries",
			slog.String("game_id", game.GameID),
			slog.String("session_id", game.SessionID),
			slog.Int("entries", len(entries)),
			slog.String("error", err.Error()),
		)
	}
}
