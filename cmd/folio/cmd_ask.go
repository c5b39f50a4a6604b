package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/folio-chat/internal/adapters/terminal"
	"github.com/PabloGalante/folio-chat/internal/app/conversation"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Example: `  folio ask "Which projects use Go?"
  FOLIO_CHAT_BACKEND=mock folio ask hello`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{quietAnnotation: "true"},
	RunE:        runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	printer, err := terminal.NewPrinter(cmd.OutOrStdout(), terminal.PrinterOptions{})
	if err != nil {
		return err
	}

	view, err := a.conversations.StartSession(ctx, conversation.StartSessionInput{})
	if err != nil {
		return err
	}
	defer a.conversations.EndSession(ctx, view.ID)

	ex, err := a.conversations.SendMessage(ctx, conversation.SendMessageInput{
		SessionID: view.ID,
		Text:      strings.Join(args, " "),
	})
	if err != nil {
		return err
	}
	if ex.Err != nil {
		printer.Failure(ex.Err)
		return ex.Err
	}

	printer.Message(ex.Assistant)
	return nil
}
