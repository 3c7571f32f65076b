// Package blackstories is the HTTP client for the game backend. It implements
// the session transport: start endpoints and follow-up submissions return the
// raw streaming body, the remaining endpoints are one-shot JSON exchanges.
package blackstories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/blackstories-client/internal/domain"
	"github.com/tjfontaine/blackstories-client/internal/session"
)

const (
	defaultBaseURL = "http://localhost:5000"
	userAgent      = "blackstories-client/1.0"
)

var _ session.Transport = (*Client)(nil)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the game backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a backend client. The default HTTP client has no timeout
// since game streams run for as long as the backend keeps playing.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the primary stream for mode.
func (c *Client) Start(ctx context.Context, sessionID string, mode domain.Mode, p domain.StartParams) (io.ReadCloser, error) {
	path, body, err := startRequest(sessionID, mode, p)
	if err != nil {
		return nil, err
	}
	return c.stream(ctx, "start", path, body)
}

func startRequest(sessionID string, mode domain.Mode, p domain.StartParams) (string, any, error) {
	switch mode {
	case domain.ModeSingle:
		return "/start_game", startGameRequest{
			Difficulty:     p.Difficulty,
			NarratorModel:  p.NarratorModel,
			DetectiveModel: p.DetectiveModel,
			SessionID:      sessionID,
		}, nil
	case domain.ModeInteractive:
		return "/start_interactive", startInteractiveRequest{
			Difficulty:    p.Difficulty,
			NarratorModel: p.NarratorModel,
			SessionID:     sessionID,
		}, nil
	case domain.ModeFight:
		return "/start_fight", startFightRequest{
			NarratorModel:   p.NarratorModel,
			Difficulty:      p.Difficulty,
			DetectiveModel1: p.DetectiveModel,
			DetectiveModel2: p.DetectiveModel2,
			SessionID:       sessionID,
		}, nil
	case domain.ModeCouncil:
		return "/start_council", startCouncilRequest{
			NarratorModel:  p.NarratorModel,
			Difficulty:     p.Difficulty,
			VisionaryModel: p.VisionaryModel,
			SkepticModel:   p.SkepticModel,
			LeaderModel:    p.LeaderModel,
			SessionID:      sessionID,
		}, nil
	case domain.ModeInverse:
		return "/start_inverse", startInverseRequest{
			Difficulty:     p.Difficulty,
			DetectiveModel: p.DetectiveModel,
			SessionID:      sessionID,
		}, nil
	}
	return "", nil, domain.ErrInvalidUserInput("start", fmt.Sprintf("unknown game mode %q", mode))
}

// SubmitAnswer posts a canned inverse answer and returns the follow-up stream.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID, answer string) (io.ReadCloser, error) {
	return c.stream(ctx, "submit_choice", "/inverse_answer", answerRequest{SessionID: sessionID, Answer: answer})
}

// SubmitSolution posts a final solution and returns the verdict stream.
func (c *Client) SubmitSolution(ctx context.Context, sessionID, solution string) (io.ReadCloser, error) {
	return c.stream(ctx, "submit_solution", "/solve_mystery", solutionRequest{SessionID: sessionID, Solution: solution})
}

// AskNarrator asks a free-text question.
func (c *Client) AskNarrator(ctx context.Context, sessionID, question string) (string, error) {
	var out askResponse
	if err := c.call(ctx, "ask", "/ask_narrator", askRequest{SessionID: sessionID, Question: question}, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

// RequestHint asks for a hint.
func (c *Client) RequestHint(ctx context.Context, sessionID string) (string, error) {
	var out hintResponse
	if err := c.call(ctx, "hint", "/get_hint", sessionRequest{SessionID: sessionID}, &out); err != nil {
		return "", err
	}
	return out.Hint, nil
}

// SaveConversation asks the backend to persist the conversation.
func (c *Client) SaveConversation(ctx context.Context, sessionID string) (domain.SaveResult, error) {
	var out saveResponse
	if err := c.call(ctx, "save", "/save_conversation", sessionRequest{SessionID: sessionID}, &out); err != nil {
		return domain.SaveResult{}, err
	}
	ok := true
	switch {
	case out.OK != nil:
		ok = *out.OK
	case out.Status != "":
		ok = out.Status == "success"
	}
	return domain.SaveResult{OK: ok, Message: out.Message}, nil
}

// stream posts body and returns the response body for a 2xx reply.
func (c *Client) stream(ctx context.Context, op, path string, body any) (io.ReadCloser, error) {
	resp, err := c.post(ctx, op, path, body)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// call posts body and decodes a 2xx JSON reply into out.
func (c *Client) call(ctx context.Context, op, path string, body, out any) error {
	resp, err := c.post(ctx, op, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ErrTransportFailure(op, fmt.Errorf("failed to read response: %w", err))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.ErrProtocolFailure(op, fmt.Sprintf("failed to unmarshal response: %v", err)).WithCause(err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.ErrTransportFailure(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		c.logger.Debug("backend returned an error status",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return nil, domain.ErrProtocolFailure(op, errorMessage(resp.StatusCode, respBody))
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func errorMessage(status int, body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	if len(bytes.TrimSpace(body)) > 0 && !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		return fmt.Sprintf("status %d: %s", status, bytes.TrimSpace(body))
	}
	return fmt.Sprintf("status %d", status)
}
