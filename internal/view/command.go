// Package view defines the UI-facing commands emitted by the mode controller.
// Rendering them is the job of a Sink owned by the view layer.
package view

import (
	"sync"

	"github.com/tjfontaine/blackstories-client/internal/domain"
)

// Kind identifies a command.
type Kind string

const (
	KindClear        Kind = "clear"
	KindMessage      Kind = "message"
	KindStatus       Kind = "status"
	KindPromptInput  Kind = "prompt_input"
	KindPromptChoice Kind = "prompt_choice"
	KindClosePrompt  Kind = "close_prompt"
	KindOfferSave    Kind = "offer_save"
)

// Lane groups messages for presentation.
type Lane string

const (
	LaneMystery    Lane = "mystery"
	LaneNarrator   Lane = "narrator"
	LaneDetective  Lane = "detective"
	LaneDetective2 Lane = "detective2"
	LaneVisionary  Lane = "council_visionary"
	LaneSkeptic    Lane = "council_skeptic"
	LaneLeader     Lane = "council_leader"
	LaneSummary    Lane = "summary"
	LaneSystem     Lane = "system"
	LaneError      Lane = "error"
)

// Audience restricts who may see a command.
type Audience int

const (
	// AudienceShared commands may be broadcast, recorded, or shown to anyone.
	AudienceShared Audience = iota

	// AudienceNarrator commands are only for the local narrating user.
	AudienceNarrator
)

// Command is one instruction for the view layer.
type Command struct {
	Kind     Kind
	Lane     Lane
	Speaker  string
	Text     string
	HTML     bool
	State    domain.TurnState
	Choices  []string
	Audience Audience
}

// Message builds a message command.
func Message(lane Lane, speaker, text string) Command {
	return Command{Kind: KindMessage, Lane: lane, Speaker: speaker, Text: text}
}

// System builds a system message.
func System(text string) Command {
	return Message(LaneSystem, "", text)
}

// Failure builds an error message.
func Failure(text string) Command {
	return Message(LaneError, "", text)
}

// Status builds a status badge update.
func Status(state domain.TurnState, label string) Command {
	return Command{Kind: KindStatus, State: state, Text: label}
}

// Private marks a command as narrator-only.
func Private(c Command) Command {
	c.Audience = AudienceNarrator
	return c
}

// Broadcast drops every command not meant for a shared view.
func Broadcast(cmds []Command) []Command {
	out := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Audience == AudienceShared {
			out = append(out, c)
		}
	}
	return out
}

// Sink renders commands. Render is called in emission order and must not
// call back into the session that emitted the command.
type Sink interface {
	Render(Command)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Command)

// Render implements Sink.
func (f SinkFunc) Render(c Command) { f(c) }

// Discard is a Sink that drops everything.
var Discard Sink = SinkFunc(func(Command) {})

// Buffer is a Sink that keeps every command in memory.
type Buffer struct {
	mu   sync.Mutex
	cmds []Command
}

// Render implements Sink.
func (b *Buffer) Render(c Command) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cmds = append(b.cmds, c)
}

// Commands returns a copy of what has been rendered so far.
func (b *Buffer) Commands() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Command, len(b.cmds))
	copy(out, b.cmds)
	return out
}

// Messages returns only the message commands.
func (b *Buffer) Messages() []Command {
	var out []Command
	for _, c := range b.Commands() {
		if c.Kind == KindMessage {
			out = append(out, c)
		}
	}
	return out
}
