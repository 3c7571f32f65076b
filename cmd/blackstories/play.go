package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/tjfontaine/blackstories-client/internal/config"
	"github.com/tjfontaine/blackstories-client/internal/conversation"
	"github.com/tjfontaine/blackstories-client/internal/domain"
	"github.com/tjfontaine/blackstories-client/internal/session"
	"github.com/tjfontaine/blackstories-client/internal/terminal"
	"github.com/tjfontaine/blackstories-client/internal/view"
)

func playCommand() *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "play one game in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Usage: "single, interactive, fight, council or inverse"},
			&cli.StringFlag{Name: "session", Usage: "session id to reuse"},
			&cli.StringFlag{Name: "difficulty", Usage: "mystery difficulty"},
		},
		Action: runPlay,
	}
}

func runPlay(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(cmd, func(c *config.Config) {
		if v := cmd.String("mode"); v != "" {
			c.Game.Mode = v
		}
		if v := cmd.String("session"); v != "" {
			c.Game.SessionID = v
		}
		if v := cmd.String("difficulty"); v != "" {
			c.Game.Difficulty = v
		}
	})
	if err != nil {
		return err
	}
	defer e.close()

	mode, err := domain.ParseMode(e.cfg.Game.Mode)
	if err != nil {
		return err
	}

	sink := terminal.New(os.Stdout)
	opts := []session.Option{
		session.WithLogger(e.logger),
		session.WithSessionID(e.cfg.Game.SessionID),
		session.WithAnswers(e.cfg.Inverse.Answers),
	}
	if e.store != nil {
		opts = append(opts, session.WithRecorder(conversation.NewRecorder(e.store, e.logger)))
	}
	orch := session.New(e.client(), sink, opts...)

	e.logger.Info("starting game",
		slog.String("session_id", orch.ID()),
		slog.String("mode", string(mode)),
		slog.String("base_url", e.cfg.Server.BaseURL),
	)
	return play(ctx, orch, sink, mode, e.cfg.StartParams(), os.Stdin)
}

type actionKind int

const (
	actNone actionKind = iota
	actQuit
	actSave
	actHint
	actSolve
	actAsk
	actChoice
)

type action struct {
	kind actionKind
	text string
}

// parseInput maps one line typed by the user to an action for state.
func parseInput(line string, state domain.TurnState, answers []string) action {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return action{kind: actNone}
	case line == "/quit":
		return action{kind: actQuit}
	case line == "/save":
		return action{kind: actSave}
	case line == "/hint":
		return action{kind: actHint}
	case line == "/solve" || strings.HasPrefix(line, "/solve "):
		return action{kind: actSolve, text: strings.TrimSpace(strings.TrimPrefix(line, "/solve"))}
	}

	if state == domain.TurnAwaitingUserChoice {
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(answers) {
			return action{kind: actChoice, text: answers[n-1]}
		}
		return action{kind: actChoice, text: line}
	}
	return action{kind: actAsk, text: line}
}

// play runs one game: the first stream starts right away and stdin drives
// every later exchange until /quit or end of input.
func play(ctx context.Context, orch *session.Orchestrator, sink view.Sink, mode domain.Mode, params domain.StartParams, in io.Reader) error {
	lines := scanLines(in, slog.Default())
	streams := make(chan error, 1)
	streaming := true
	go func() { streams <- orch.Start(ctx, mode, params) }()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-streams:
			streaming = false
			report(sink, err)
			if s := orch.State(); s == domain.TurnCompleted || s == domain.TurnErrored {
				sink.Render(view.System("Partida terminada. /save para guardar la conversación, /quit para salir."))
			}

		case line, ok := <-lines:
			if !ok {
				if streaming {
					<-streams
				}
				return nil
			}

			act := parseInput(line, orch.State(), orch.Answers())
			switch act.kind {
			case actNone:
			case actQuit:
				return nil
			case actSave:
				report(sink, orch.Save(ctx))
			case actHint:
				report(sink, orch.RequestHint(ctx))
			case actAsk:
				report(sink, orch.SubmitUserTurn(ctx, act.text))
			case actSolve, actChoice:
				if streaming {
					report(sink, domain.ErrOutstanding("submit"))
					continue
				}
				streaming = true
				go func() {
					if act.kind == actSolve {
						streams <- orch.SubmitSolution(ctx, act.text)
						return
					}
					streams <- orch.SubmitChoice(ctx, act.text)
				}()
			}
		}
	}
}

// report shows errors the orchestrator rejected before any exchange. Exchange
// failures have already been rendered.
func report(sink view.Sink, err error) {
	if err == nil {
		return
	}
	var e *domain.Error
	if !errors.As(err, &e) {
		return
	}
	switch e.Type {
	case domain.ErrorTypeUserInput, domain.ErrorTypeInvalidState, domain.ErrorTypeBusy:
		sink.Render(view.Failure("Error: " + e.Text()))
	}
}

// scanLines delivers stdin one line at a time. Lines have no length limit;
// the channel closes at end of input or on a read error, which is logged.
func scanLines(r io.Reader, logger *slog.Logger) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				out <- strings.TrimRight(line, "\r\n")
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					logger.Error("failed to read input", slog.String("error", err.Error()))
				}
				return
			}
		}
	}()
	return out
}
