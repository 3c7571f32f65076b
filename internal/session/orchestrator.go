// Package session drives one game session: it issues the backend exchanges,
// pipes every stream through the line reader and the decoder into the mode
// controller, and hands the resulting commands to the view sink.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/blackstories-client/internal/codec"
	"github.com/tjfontaine/blackstories-client/internal/domain"
	"github.com/tjfontaine/blackstories-client/internal/game"
	"github.com/tjfontaine/blackstories-client/internal/stream"
	"github.com/tjfontaine/blackstories-client/internal/view"
)

const tracerName = "github.com/tjfontaine/blackstories-client/internal/session"

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSessionID sets the stable session identifier. When empty a random one is
// generated once and reused for every game started by the orchestrator.
func WithSessionID(id string) Option {
	return func(o *Orchestrator) {
		if id != "" {
			o.id = id
		}
	}
}

// WithAnswers overrides the inverse mode canned answers.
func WithAnswers(answers []string) Option {
	return func(o *Orchestrator) {
		o.answers = answers
	}
}

// WithRecorder records broadcast commands.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithTracer sets the tracer used for exchange spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// Orchestrator owns the session identifier and the active controller. All
// methods are safe for concurrent use; each one blocks for the duration of
// its exchange, and stream methods return once the stream has ended.
type Orchestrator struct {
	transport Transport
	sink      view.Sink
	recorder  Recorder
	logger    *slog.Logger
	tracer    trace.Tracer
	answers   []string
	id        string

	// mu serializes controller access and sink emission.
	mu        sync.Mutex
	ctrl      *game.Controller
	streaming bool
	asking    bool
	hinting   bool
	saving    bool
}

// New creates an orchestrator that talks to transport and renders to sink.
func New(transport Transport, sink view.Sink, opts ...Option) *Orchestrator {
	if sink == nil {
		sink = view.Discard
	}
	o := &Orchestrator{
		transport: transport,
		sink:      sink,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		id:        uuid.New().String(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ID returns the session identifier.
func (o *Orchestrator) ID() string {
	return o.id
}

// Session returns the current session, if a game was started.
func (o *Orchestrator) Session() (domain.Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctrl == nil {
		return domain.Session{}, false
	}
	return o.ctrl.Session(), true
}

// State returns the current turn state.
func (o *Orchestrator) State() domain.TurnState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctrl == nil {
		return domain.TurnIdle
	}
	return o.ctrl.State()
}

// Answers returns the canned choices for the current inverse session.
func (o *Orchestrator) Answers() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctrl != nil {
		return o.ctrl.Answers()
	}
	if len(o.answers) > 0 {
		return slices.Clone(o.answers)
	}
	return slices.Clone(game.DefaultAnswers)
}

// Start begins a fresh game in mode and consumes its stream. It is rejected
// while another primary stream is running.
func (o *Orchestrator) Start(ctx context.Context, mode domain.Mode, params domain.StartParams) error {
	o.mu.Lock()
	if o.streaming || (o.ctrl != nil && o.ctrl.State() == domain.TurnRunning) {
		o.mu.Unlock()
		return o.reject(domain.ErrOutstanding("start"))
	}
	ctrl := game.New(domain.NewSession(o.id, uuid.New().String(), mode),
		game.WithAnswers(o.answers),
		game.WithLogger(o.logger),
	)
	cmds, err := ctrl.Start()
	if err != nil {
		o.mu.Unlock()
		return o.reject(err)
	}
	o.ctrl = ctrl
	o.streaming = true
	o.emit(ctx, ctrl, cmds)
	o.mu.Unlock()

	ctx, span := o.startSpan(ctx, "session.start", ctrl)
	defer span.End()

	body, err := o.transport.Start(ctx, o.id, mode, params)
	return o.consume(ctx, span, ctrl, "start", body, err)
}

// SubmitChoice answers the detective's question in inverse mode and consumes
// the follow-up stream with the same controller.
func (o *Orchestrator) SubmitChoice(ctx context.Context, answer string) error {
	o.mu.Lock()
	ctrl, err := o.primary("submit_choice")
	if err != nil {
		o.mu.Unlock()
		return o.reject(err)
	}
	cmds, err := ctrl.SubmitChoice(answer)
	if err != nil {
		o.mu.Unlock()
		return o.reject(err)
	}
	o.streaming = true
	o.emit(ctx, ctrl, cmds)
	o.mu.Unlock()

	ctx, span := o.startSpan(ctx, "session.submit_choice", ctrl)
	defer span.End()

	body, err := o.transport.SubmitAnswer(ctx, o.id, strings.TrimSpace(answer))
	return o.consume(ctx, span, ctrl, "submit_choice", body, err)
}

// SubmitSolution sends the final interactive solution and consumes the
// verdict stream with the same controller.
func (o *Orchestrator) SubmitSolution(ctx context.Context, solution string) error {
	o.mu.Lock()
	ctrl, err := o.primary("submit_solution")
	if err != nil {
		o.mu.Unlock()
		return o.reject(err)
	}
	cmds, err := ctrl.SubmitSolution(solution)
	if err != nil {
		o.mu.Unlock()
		return o.reject(err)
	}
	o.streaming = true
	o.emit(ctx, ctrl, cmds)
	o.mu.Unlock()

	ctx, span := o.startSpan(ctx, "session.submit_solution", ctrl)
	defer span.End()

	body, err := o.transport.SubmitSolution(ctx, o.id, strings.TrimSpace(solution))
	return o.consume(ctx, span, ctrl, "submit_solution", body, err)
}

// SubmitUserTurn asks the narrator a free-text question in interactive mode.
func (o *Orchestrator) SubmitUserTurn(ctx context.Context, question string) error {
	o.mu.Lock()
	ctrl, err := o.current("ask")
	if err == nil && o.asking {
		err = domain.ErrOutstanding("ask")
	}
	if err != nil {
		o.mu.Unlock()
		return o.reject(err)
	}
	cmds, err := ctrl.Ask(question)
	if err != nil {
		o.mu.Unlock()
		return o.reject(err)
	}
	o.asking = true
	o.emit(ctx, ctrl, cmds)
	o.mu.Unlock()

	ctx, span := o.startSpan(ctx, "session.ask", ctrl)
	defer span.End()

	answer, err := o.transport.AskNarrator(ctx, o.id, strings.TrimSpace(question))

	o.mu.Lock()
	defer o.mu.Unlock()
	o.asking = false
	if err != nil {
		o.exchangeFailed(span, "ask", err)
		o.emitIfCurrent(ctx, ctrl, ctrl.AskFailed(err))
		return err
	}
	o.emitIfCurrent(ctx, ctrl, ctrl.Answered(answer))
	return nil
}

// RequestHint asks for a hint in interactive mode.
func (o *Orchestrator) RequestHint(ctx context.Context) error {
	o.mu.Lock()
	ctrl, err := o.current("hint")
	if err == nil && o.hinting {
		err = domain.ErrOutstanding("hint")
	}
	if err != nil {
		o.mu.Unlock()
		return o.reject(err)
	}
	cmds, err := ctrl.Hint()
	if err != nil {
		o.mu.Unlock()
		return o.reject(err)
	}
	o.hinting = true
	o.emit(ctx, ctrl, cmds)
	o.mu.Unlock()

	ctx, span := o.startSpan(ctx, "session.hint", ctrl)
	defer span.End()

	hint, err := o.transport.RequestHint(ctx, o.id)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.hinting = false
	if err != nil {
		o.exchangeFailed(span, "hint", err)
		o.emitIfCurrent(ctx, ctrl, ctrl.HintFailed(err))
		return err
	}
	o.emitIfCurrent(ctx, ctrl, ctrl.Hinted(hint))
	return nil
}

// Save asks the backend to persist the conversation.
func (o *Orchestrator) Save(ctx context.Context) error {
	o.mu.Lock()
	ctrl, err := o.current("save")
	if err == nil && o.saving {
		err = domain.ErrOutstanding("save")
	}
	if err == nil {
		err = ctrl.Save()
	}
	if err != nil {
		o.mu.Unlock()
		return o.reject(err)
	}
	o.saving = true
	o.mu.Unlock()

	ctx, span := o.startSpan(ctx, "session.save", ctrl)
	defer span.End()

	res, err := o.transport.SaveConversation(ctx, o.id)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.saving = false
	if err != nil {
		o.exchangeFailed(span, "save", err)
		o.emitIfCurrent(ctx, ctrl, ctrl.SaveFailed(err))
		return err
	}
	o.emitIfCurrent(ctx, ctrl, ctrl.Saved(res))
	return nil
}

// consume pipes one primary stream into ctrl. openErr is the error from
// issuing the request, if any.
func (o *Orchestrator) consume(ctx context.Context, span trace.Span, ctrl *game.Controller, op string, body io.ReadCloser, openErr error) error {
	defer func() {
		o.mu.Lock()
		o.streaming = false
		o.mu.Unlock()
	}()

	if openErr != nil {
		o.exchangeFailed(span, op, openErr)
		o.mu.Lock()
		if domain.IsType(openErr, domain.ErrorTypeProtocol) {
			o.emit(ctx, ctrl, ctrl.Apply(domain.ErrorNotice{Message: "Error: " + errorText(openErr)}))
		} else {
			o.emit(ctx, ctrl, ctrl.Fail(openErr))
		}
		o.mu.Unlock()
		return openErr
	}
	defer body.Close()

	sess := ctrl.Session()
	started := time.Now()
	lines := 0
	o.logger.Info("stream opened",
		slog.String("op", op),
		slog.String("session_id", sess.ID),
		slog.String("mode", string(sess.Mode)),
	)

	for res := range stream.ReadLines(body) {
		if res.Err != nil {
			err := domain.ErrTransportFailure(op, res.Err)
			o.exchangeFailed(span, op, err)
			o.mu.Lock()
			o.emit(ctx, ctrl, ctrl.Fail(err))
			o.mu.Unlock()
			return err
		}
		lines++
		o.handleLine(ctx, ctrl, res.Line)
	}

	o.mu.Lock()
	o.emit(ctx, ctrl, ctrl.EndOfStream())
	state := ctrl.State()
	o.mu.Unlock()

	span.SetAttributes(
		attribute.Int("stream.lines", lines),
		attribute.String("session.turn_state", string(state)),
	)
	o.logger.Info("stream closed",
		slog.String("op", op),
		slog.String("session_id", sess.ID),
		slog.String("mode", string(sess.Mode)),
		slog.Int("lines", lines),
		slog.String("turn_state", string(state)),
		slog.Duration("duration", time.Since(started)),
	)
	return nil
}

func (o *Orchestrator) handleLine(ctx context.Context, ctrl *game.Controller, line string) {
	ev, filter, decodeErr := codec.DecodeChecked(line)
	switch filter {
	case codec.FilterBlank:
		return
	case codec.FilterDebug:
		o.logger.Debug("backend debug line", slog.String("line", line))
		return
	case codec.FilterSaveOffer:
		o.mu.Lock()
		o.emit(ctx, ctrl, ctrl.OfferSave())
		o.mu.Unlock()
		return
	}

	if decodeErr != nil {
		o.logger.Warn("malformed stream line",
			slog.String("session_id", o.id),
			slog.String("line", line),
			slog.String("error", decodeErr.Error()),
		)
	}
	if notice, ok := ev.(domain.ErrorNotice); ok {
		o.logger.Error("backend reported an error",
			slog.String("session_id", o.id),
			slog.String("message", notice.Message),
		)
	}

	o.mu.Lock()
	o.emit(ctx, ctrl, ctrl.Apply(ev))
	o.mu.Unlock()
}

// primary returns the controller for a follow-up stream. Callers hold mu.
func (o *Orchestrator) primary(op string) (*game.Controller, error) {
	if o.streaming {
		return nil, domain.ErrOutstanding(op)
	}
	return o.current(op)
}

// current returns the active controller. Callers hold mu.
func (o *Orchestrator) current(op string) (*game.Controller, error) {
	if o.ctrl == nil {
		return nil, domain.ErrWrongState(op, domain.TurnIdle)
	}
	return o.ctrl, nil
}

// emit renders cmds and records the shared ones. Callers hold mu.
func (o *Orchestrator) emit(ctx context.Context, ctrl *game.Controller, cmds []view.Command) {
	if len(cmds) == 0 {
		return
	}
	for _, c := range cmds {
		o.sink.Render(c)
	}
	if o.recorder != nil {
		if shared := view.Broadcast(cmds); len(shared) > 0 {
			o.recorder.Record(ctx, ctrl.Session().Ref(), shared)
		}
	}
}

// emitIfCurrent drops side-channel results that arrive after a new game
// replaced ctrl. Callers hold mu.
func (o *Orchestrator) emitIfCurrent(ctx context.Context, ctrl *game.Controller, cmds []view.Command) {
	if o.ctrl != ctrl {
		o.logger.Debug("dropping result for a replaced game", slog.String("session_id", o.id))
		return
	}
	o.emit(ctx, ctrl, cmds)
}

func (o *Orchestrator) reject(err error) error {
	o.logger.Debug("operation rejected",
		slog.String("session_id", o.id),
		slog.String("error", err.Error()),
	)
	return err
}

func (o *Orchestrator) exchangeFailed(span trace.Span, op string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.logger.Error("exchange failed",
		slog.String("op", op),
		slog.String("session_id", o.id),
		slog.String("error", err.Error()),
	)
}

func (o *Orchestrator) startSpan(ctx context.Context, name string, ctrl *game.Controller) (context.Context, trace.Span) {
	sess := ctrl.Session()
	return o.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("game.id", sess.GameID),
		attribute.String("game.mode", string(sess.Mode)),
	))
}

func errorText(err error) string {
	var e *domain.Error
	if errors.As(err, &e) {
		return e.Text()
	}
	return err.Error()
}
