package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/folio-chat/internal/adapters/terminal"
)

var chatCmd = &cobra.Command{
	Use:         "chat",
	Short:       "Chat with the assistant in the terminal",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{quietAnnotation: "true"},
	RunE:        runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
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

	in, err := terminal.NewLineReader(filepath.Join(os.TempDir(), "folio.history"))
	if err != nil {
		return err
	}

	return terminal.Run(ctx, a.conversations, in, printer)
}
