package game

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/blackstories-client/internal/domain"
	"github.com/tjfontaine/blackstories-client/internal/view"
)

// rules is the mode-specific part of the state machine. transition handles
// the events that only mean something in its mode and reports whether it did;
// everything else falls through to Controller.common.
type rules interface {
	transition(c *Controller, ev domain.Event) ([]view.Command, bool)
	startNotice() string
	awaitingLabel() string
	detectiveLabel(speaker int) string
}

func rulesFor(mode domain.Mode) rules {
	switch mode {
	case domain.ModeInteractive:
		return interactiveRules{}
	case domain.ModeFight:
		return fightRules{}
	case domain.ModeCouncil:
		return councilRules{}
	case domain.ModeInverse:
		return inverseRules{}
	default:
		return singleRules{}
	}
}

// singleRules: one AI detective against the AI narrator.
type singleRules struct{}

func (singleRules) transition(*Controller, domain.Event) ([]view.Command, bool) { return nil, false }
func (singleRules) startNotice() string                                        { return "Starting new game session..." }
func (singleRules) awaitingLabel() string                                      { return "Waiting" }
func (singleRules) detectiveLabel(int) string                                  { return "Detective" }

// interactiveRules: the user is the detective and asks over a side channel
// once the backend signals it is ready.
type interactiveRules struct{}

func (interactiveRules) transition(c *Controller, ev domain.Event) ([]view.Command, bool) {
	ready, ok := ev.(domain.InteractiveReady)
	if !ok {
		return nil, false
	}
	cmds := []view.Command{view.System(ready.Text)}
	if c.session.TurnState == domain.TurnRunning {
		cmds = append(cmds, c.moveTo(domain.TurnAwaitingUserInput)...)
		cmds = append(cmds, view.Command{Kind: view.KindPromptInput})
	}
	return cmds, true
}

func (interactiveRules) startNotice() string       { return "Starting interactive session..." }
func (interactiveRules) awaitingLabel() string     { return "Your Turn" }
func (interactiveRules) detectiveLabel(int) string { return "Detective" }

// fightRules: two AI detectives compete against one narrator.
type fightRules struct{}

func (fightRules) transition(*Controller, domain.Event) ([]view.Command, bool) { return nil, false }
func (fightRules) startNotice() string                                        { return "Starting fight mode session..." }
func (fightRules) awaitingLabel() string                                      { return "Waiting" }

func (fightRules) detectiveLabel(speaker int) string {
	return fmt.Sprintf("Detective %d", speaker)
}

// councilRules: visionary, skeptic and leader deliberate together.
type councilRules struct{}

func (councilRules) transition(*Controller, domain.Event) ([]view.Command, bool) { return nil, false }
func (councilRules) startNotice() string                                        { return "Convoking the Council of Detectives..." }
func (councilRules) awaitingLabel() string                                      { return "Waiting" }
func (councilRules) detectiveLabel(int) string                                  { return "Detective" }

// inverseRules: the user narrates and holds the solution; the AI detective
// asks and the user answers with canned choices.
type inverseRules struct{}

func (inverseRules) transition(c *Controller, ev domain.Event) ([]view.Command, bool) {
	switch e := ev.(type) {
	case domain.InverseInit:
		c.session.Solution = e.Solution
		c.session.MysteryRevealed = true
		cmds := []view.Command{
			view.Message(view.LaneMystery, SpeakerMystery, "Misterio: "+e.Mystery),
			view.Private(view.System("Solución (SOLO PARA TI): " + e.Solution)),
		}
		if c.session.TurnState == domain.TurnRunning {
			cmds = append(cmds, c.moveTo(domain.TurnAwaitingUserInput)...)
		}
		return cmds, true

	case domain.InverseQuestion:
		cmds := []view.Command{c.detective(1, e.Text)}
		return append(cmds, c.awaitChoice()...), true

	case domain.InverseSolutionAck:
		return c.awaitChoice(), true

	case domain.SystemNote:
		// The plain-text setup banner that precedes inverse_init carries the
		// solution, as does any later line repeating it.
		if c.session.Solution == "" || strings.Contains(e.Text, c.session.Solution) {
			return []view.Command{view.Private(view.System(e.Text))}, true
		}
	}
	return nil, false
}

func (inverseRules) startNotice() string       { return "Initializing Inverse Mode..." }
func (inverseRules) awaitingLabel() string     { return "Your Turn (Narrator)" }
func (inverseRules) detectiveLabel(int) string { return "Detective" }

// awaitChoice opens the canned answer prompt while the game is live.
func (c *Controller) awaitChoice() []view.Command {
	if !c.live() {
		return nil
	}
	cmds := c.moveTo(domain.TurnAwaitingUserChoice)
	return append(cmds, view.Command{Kind: view.KindPromptChoice, Choices: c.Answers()})
}
