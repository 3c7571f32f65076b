package session

import (
	"context"
	"io"

	"github.com/tjfontaine/blackstories-client/internal/domain"
	"github.com/tjfontaine/blackstories-client/internal/view"
)

// Transport issues the backend exchanges for one session. Stream methods
// return the raw response body; the orchestrator owns closing it.
type Transport interface {
	// Start opens the primary stream for mode.
	Start(ctx context.Context, sessionID string, mode domain.Mode, params domain.StartParams) (io.ReadCloser, error)

	// SubmitAnswer posts a canned inverse answer. The reply is a new stream.
	SubmitAnswer(ctx context.Context, sessionID, answer string) (io.ReadCloser, error)

	// SubmitSolution posts a final interactive solution. The reply is a new stream.
	SubmitSolution(ctx context.Context, sessionID, solution string) (io.ReadCloser, error)

	AskNarrator(ctx context.Context, sessionID, question string) (string, error)
	RequestHint(ctx context.Context, sessionID string) (string, error)
	SaveConversation(ctx context.Context, sessionID string) (domain.SaveResult, error)
}

// Recorder receives every command that may be shown to a shared audience,
// keyed by the game that produced it. Implementations must not fail the
// game path.
type Recorder interface {
	Record(ctx context.Context, game domain.GameRef, cmds []view.Command)
}
