// Package game implements the per-session conversation state machine. A
// Controller consumes decoded events and user actions, updates the Session
// it owns, and returns the view commands to render.
package game

import (
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/tjfontaine/blackstories-client/internal/domain"
	"github.com/tjfontaine/blackstories-client/internal/view"
)

// DefaultAnswers are the canned replies offered to the narrating user in
// inverse mode.
var DefaultAnswers = []string{"Sí", "No", "Irrelevante", "¡Correcto!"}

// Speaker names shown in the conversation.
const (
	SpeakerMystery  = "Misterio"
	SpeakerNarrator = "Narrador"
	SpeakerUser     = "Tú"
)

// Option configures a Controller.
type Option func(*Controller)

// WithAnswers overrides the inverse mode canned answers.
func WithAnswers(answers []string) Option {
	return func(c *Controller) {
		if len(answers) > 0 {
			c.answers = slices.Clone(answers)
		}
	}
}

// WithLogger sets the logger used for state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller is the state machine for one session. It is not safe for
// concurrent use; the orchestrator serializes access.
type Controller struct {
	session *domain.Session
	rules   rules
	answers []string
	logger  *slog.Logger
}

// New creates a controller for session. The session mode selects the rule set.
func New(session *domain.Session, opts ...Option) *Controller {
	c := &Controller{
		session: session,
		rules:   rulesFor(session.Mode),
		answers: DefaultAnswers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns a copy of the current session state.
func (c *Controller) Session() domain.Session {
	return *c.session
}

// State returns the current turn state.
func (c *Controller) State() domain.TurnState {
	return c.session.TurnState
}

// Answers returns the canned inverse answers.
func (c *Controller) Answers() []string {
	return slices.Clone(c.answers)
}

// Start begins the game: the mystery flag is reset and the session runs.
func (c *Controller) Start() ([]view.Command, error) {
	if c.session.TurnState == domain.TurnRunning {
		return nil, domain.ErrOutstanding("start")
	}
	c.session.MysteryRevealed = false
	c.session.Solution = ""
	cmds := []view.Command{
		{Kind: view.KindClear},
		view.System(c.rules.startNotice()),
	}
	return append(cmds, c.moveTo(domain.TurnRunning)...), nil
}

// Apply handles one decoded event.
func (c *Controller) Apply(ev domain.Event) []view.Command {
	if cmds, ok := c.rules.transition(c, ev); ok {
		return cmds
	}
	return c.common(ev)
}

// OfferSave handles the legacy save sentinel.
func (c *Controller) OfferSave() []view.Command {
	return []view.Command{{Kind: view.KindOfferSave}}
}

// EndOfStream handles a stream that closed without an explicit terminal
// event. A running session completes; a paused session stays paused.
func (c *Controller) EndOfStream() []view.Command {
	if c.session.TurnState != domain.TurnRunning {
		return nil
	}
	return c.moveTo(domain.TurnCompleted)
}

// Fail handles a transport failure on a primary stream.
func (c *Controller) Fail(err error) []view.Command {
	cmds := []view.Command{view.Failure("Connection error: " + errorText(err))}
	if c.session.TurnState == domain.TurnRunning {
		cmds = append(cmds, c.moveTo(domain.TurnErrored)...)
	}
	return cmds
}

// Ask validates and echoes a free-text question in interactive mode.
func (c *Controller) Ask(question string) ([]view.Command, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrInvalidUserInput("ask", "question is empty")
	}
	if err := c.expect("ask", domain.ModeInteractive, domain.TurnAwaitingUserInput); err != nil {
		return nil, err
	}
	return []view.Command{view.Message(view.LaneDetective, SpeakerUser, question)}, nil
}

// Answered shows the narrator reply to a question.
func (c *Controller) Answered(answer string) []view.Command {
	return []view.Command{view.Message(view.LaneNarrator, SpeakerNarrator, answer)}
}

// AskFailed reports a failed question exchange. The turn state is kept.
func (c *Controller) AskFailed(err error) []view.Command {
	if domain.IsType(err, domain.ErrorTypeProtocol) {
		return []view.Command{view.Failure("Error: " + errorText(err))}
	}
	return []view.Command{view.Failure("Network error: " + errorText(err))}
}

// SubmitSolution validates a final interactive solution and resumes the
// session for the verdict stream.
func (c *Controller) SubmitSolution(solution string) ([]view.Command, error) {
	solution = strings.TrimSpace(solution)
	if solution == "" {
		return nil, domain.ErrInvalidUserInput("submit_solution", "solution is empty")
	}
	if err := c.expect("submit_solution", domain.ModeInteractive, domain.TurnAwaitingUserInput); err != nil {
		return nil, err
	}
	cmds := []view.Command{
		view.Message(view.LaneDetective, SpeakerUser, "Solución propuesta: "+solution),
		{Kind: view.KindClosePrompt},
	}
	return append(cmds, c.moveTo(domain.TurnRunning)...), nil
}

// SubmitChoice validates a canned inverse answer and resumes the session for
// the detective's next turn.
func (c *Controller) SubmitChoice(answer string) ([]view.Command, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, domain.ErrInvalidUserInput("submit_choice", "answer is empty")
	}
	if !slices.Contains(c.answers, answer) {
		return nil, domain.ErrInvalidUserInput("submit_choice", "answer is not one of the offered choices")
	}
	if err := c.expect("submit_choice", domain.ModeInverse, domain.TurnAwaitingUserChoice); err != nil {
		return nil, err
	}
	cmds := []view.Command{
		{Kind: view.KindClosePrompt},
		view.Message(view.LaneNarrator, SpeakerUser, answer),
	}
	return append(cmds, c.moveTo(domain.TurnRunning)...), nil
}

// Hint validates a hint request. Hints exist only in interactive mode and
// only while the game is live.
func (c *Controller) Hint() ([]view.Command, error) {
	if c.session.Mode != domain.ModeInteractive {
		return nil, domain.NewError(domain.ErrorTypeInvalidState, "hints are only available in interactive mode").WithOp("hint")
	}
	switch c.session.TurnState {
	case domain.TurnRunning, domain.TurnAwaitingUserInput:
	default:
		return nil, domain.ErrWrongState("hint", c.session.TurnState)
	}
	return []view.Command{view.System("Solicitando pista a Watson...")}, nil
}

// Hinted shows a received hint.
func (c *Controller) Hinted(hint string) []view.Command {
	return []view.Command{view.System("💡 Pista de Watson: " + hint)}
}

// HintFailed reports a failed hint exchange.
func (c *Controller) HintFailed(err error) []view.Command {
	if domain.IsType(err, domain.ErrorTypeProtocol) {
		return []view.Command{view.Failure("Error obteniendo pista: " + errorText(err))}
	}
	return []view.Command{view.Failure("Error de red: " + errorText(err))}
}

// Save validates a save request. Saving is possible once the primary stream
// is no longer running.
func (c *Controller) Save() error {
	switch c.session.TurnState {
	case domain.TurnIdle, domain.TurnRunning:
		return domain.ErrWrongState("save", c.session.TurnState)
	}
	return nil
}

// Saved reports a save exchange outcome.
func (c *Controller) Saved(res domain.SaveResult) []view.Command {
	if res.OK {
		return []view.Command{view.System("Conversation saved successfully!")}
	}
	return []view.Command{view.Failure("Error saving: " + res.Message)}
}

// SaveFailed reports a failed save exchange.
func (c *Controller) SaveFailed(err error) []view.Command {
	if domain.IsType(err, domain.ErrorTypeProtocol) {
		return []view.Command{view.Failure("Error saving: " + errorText(err))}
	}
	return []view.Command{view.Failure("Network error: " + errorText(err))}
}

// common handles the events whose effect is the same in every mode.
func (c *Controller) common(ev domain.Event) []view.Command {
	switch e := ev.(type) {
	case domain.Narrator:
		return c.narrate(e.Text)
	case domain.Detective:
		return []view.Command{c.detective(e.Speaker, e.Text)}
	case domain.CouncilMessage:
		return []view.Command{council(e)}
	case domain.Summary:
		return []view.Command{{Kind: view.KindMessage, Lane: view.LaneSummary, Text: e.HTML, HTML: true}}
	case domain.ErrorNotice:
		cmds := []view.Command{view.Failure(e.Message)}
		if c.live() {
			cmds = append(cmds, c.moveTo(domain.TurnErrored)...)
		}
		return cmds
	case domain.Status:
		return nil
	case domain.SystemNote:
		return []view.Command{view.System(e.Text)}

	// Mode-specific signals that reached a mode without a rule for them are
	// shown but never change state.
	case domain.InteractiveReady:
		c.outOfMode(ev)
		return []view.Command{view.System(e.Text)}
	case domain.InverseInit:
		c.outOfMode(ev)
		return []view.Command{view.System(e.Mystery)}
	case domain.InverseQuestion:
		c.outOfMode(ev)
		return []view.Command{c.detective(1, e.Text)}
	case domain.InverseSolutionAck:
		c.outOfMode(ev)
		return nil
	default:
		return nil
	}
}

// narrate presents narrator text. The first narration of a session is the
// mystery, regardless of mode.
func (c *Controller) narrate(text string) []view.Command {
	if !c.session.MysteryRevealed {
		c.session.MysteryRevealed = true
		return []view.Command{view.Message(view.LaneMystery, SpeakerMystery, text)}
	}
	return []view.Command{view.Message(view.LaneNarrator, SpeakerNarrator, text)}
}

func (c *Controller) detective(speaker int, text string) view.Command {
	lane := view.LaneDetective
	if speaker == 2 {
		lane = view.LaneDetective2
	}
	return view.Message(lane, c.rules.detectiveLabel(speaker), text)
}

func council(e domain.CouncilMessage) view.Command {
	switch e.Role {
	case domain.RoleVisionary:
		return view.Message(view.LaneVisionary, "Visionario", e.Text)
	case domain.RoleSkeptic:
		return view.Message(view.LaneSkeptic, "Escéptico", e.Text)
	default:
		return view.Message(view.LaneLeader, "Líder", e.Text)
	}
}

// live reports whether the session accepts event-driven transitions.
func (c *Controller) live() bool {
	return c.session.TurnState == domain.TurnRunning || c.session.TurnState.Awaiting()
}

// moveTo changes the turn state and returns the status update. Errored is
// terminal until the next start.
func (c *Controller) moveTo(next domain.TurnState) []view.Command {
	prev := c.session.TurnState
	if prev == next {
		return nil
	}
	if prev == domain.TurnErrored && next != domain.TurnRunning {
		return nil
	}
	c.session.TurnState = next
	c.logger.Debug("turn state changed",
		slog.String("session_id", c.session.ID),
		slog.String("mode", string(c.session.Mode)),
		slog.String("from", string(prev)),
		slog.String("to", string(next)),
	)
	return []view.Command{view.Status(next, c.label(next))}
}

func (c *Controller) label(state domain.TurnState) string {
	switch state {
	case domain.TurnRunning:
		return "Running..."
	case domain.TurnCompleted:
		return "Completed"
	case domain.TurnAwaitingUserInput, domain.TurnAwaitingUserChoice:
		return c.rules.awaitingLabel()
	case domain.TurnErrored:
		return "Error"
	default:
		return "Ready"
	}
}

func (c *Controller) expect(op string, mode domain.Mode, state domain.TurnState) error {
	if c.session.Mode != mode {
		return domain.NewError(domain.ErrorTypeInvalidState, "not available in "+string(c.session.Mode)+" mode").WithOp(op)
	}
	if c.session.TurnState != state {
		return domain.ErrWrongState(op, c.session.TurnState)
	}
	return nil
}

func (c *Controller) outOfMode(ev domain.Event) {
	c.logger.Debug("event has no transition in this mode",
		slog.String("session_id", c.session.ID),
		slog.String("mode", string(c.session.Mode)),
		slog.String("event", string(ev.Kind())),
	)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	var e *domain.Error
	if errors.As(err, &e) {
		return e.Text()
	}
	return err.Error()
}
