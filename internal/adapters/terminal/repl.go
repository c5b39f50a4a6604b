package terminal

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/PabloGalante/folio-chat/internal/app/conversation"
	"github.com/PabloGalante/folio-chat/internal/domain"
)

// LineReader is satisfied by *readline.Instance.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// NewLineReader returns a readline prompt with history in historyFile.
func NewLineReader(historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:            promptColor.Sprint("> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistoryFile:       historyFile,
		HistorySearchFold: true,
	})
}

const helpText = "commands: /clear empties the transcript, /quit leaves"

// Run drives one chat session until the reader is exhausted, interrupted
// or the user types /quit.
func Run(ctx context.Context, svc *conversation.Service, in LineReader, p *Printer) error {
	defer in.Close()

	view, err := svc.StartSession(ctx, conversation.StartSessionInput{Greeting: true})
	if err != nil {
		return err
	}
	defer func() { _ = svc.EndSession(context.WithoutCancel(ctx), view.ID) }()

	if _, err := svc.Open(ctx, view.ID); err != nil {
		return err
	}
	for _, m := range view.Messages {
		p.Message(m)
	}
	p.Info(helpText)

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := in.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil
		}
		if err != nil {
			return err
		}

		switch cmd := strings.TrimSpace(line); cmd {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/help":
			p.Info(helpText)
			continue
		case "/clear":
			if err := svc.Clear(ctx, view.ID); err != nil {
				return err
			}
			p.Info("transcript cleared")
			continue
		}

		ex, err := svc.SendMessage(ctx, conversation.SendMessageInput{SessionID: view.ID, Text: line})
		if err != nil {
			if de, ok := domain.AsDispatchError(err); ok {
				p.Failure(de)
				continue
			}
			return err
		}
		if ex.Err != nil {
			p.Failure(ex.Err)
			continue
		}
		if ex.Assistant != nil {
			p.Message(ex.Assistant)
		}
	}
}
