package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tjfontaine/blackstories-client/internal/storage"
	"github.com/tjfontaine/blackstories-client/internal/terminal"
	"github.com/tjfontaine/blackstories-client/internal/view"
)

func transcriptCommand() *cli.Command {
	return &cli.Command{
		Name:  "transcript",
		Usage: "print recorded games",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Usage: "print every game of this session id"},
			&cli.StringFlag{Name: "game", Usage: "print a single game"},
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum number of games to print"},
		},
		Action: runTranscript,
	}
}

func runTranscript(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer e.close()

	if e.store == nil {
		return errors.New("transcripts are disabled (storage.type is none)")
	}
	return printTranscripts(ctx, e.store, os.Stdout, cmd.String("session"), cmd.String("game"), int(cmd.Int("limit")))
}

func printTranscripts(ctx context.Context, store storage.TranscriptStore, w io.Writer, sessionID, gameID string, limit int) error {
	var ids []string
	if gameID != "" {
		ids = []string{gameID}
	} else {
		list, err := store.ListTranscripts(ctx, storage.ListOptions{SessionID: sessionID, Limit: limit})
		if err != nil {
			return err
		}
		for _, t := range list {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "no transcripts found")
		return nil
	}

	sink := terminal.New(w)
	for _, id := range ids {
		t, err := store.GetTranscript(ctx, id)
		if err != nil {
			return err
		}
		sink.Render(view.Command{Kind: view.KindClear})
		fmt.Fprintf(w, "game %s  session %s  mode %s  %s\n", t.ID, t.SessionID, t.Mode, t.CreatedAt.Format("2006-01-02 15:04"))
		for _, entry := range t.Entries {
			sink.Render(view.Command{
				Kind:    view.KindMessage,
				Lane:    view.Lane(entry.Lane),
				Speaker: entry.Speaker,
				Text:    entry.Text,
				HTML:    entry.HTML,
			})
		}
	}
	return nil
}
