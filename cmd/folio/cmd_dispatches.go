package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/folio-chat/internal/config"
)

var dispatchLimit int

var dispatchesCmd = &cobra.Command{
	Use:   "dispatches",
	Short: "List the most recent dispatches from the configured dispatch log",
	Long: `List the most recent dispatches, newest first.

Only persistent logs (sqlite, postgres, firestore) have anything to show
here; the memory log lives inside the serving process and is exposed by
GET /dispatches instead.`,
	Args: cobra.NoArgs,
	RunE: runDispatches,
}

func init() {
	dispatchesCmd.Flags().IntVarP(&dispatchLimit, "limit", "n", 20, "Number of dispatches to show")
}

func runDispatches(cmd *cobra.Command, _ []string) error {
	switch cfg.DispatchLog.Backend {
	case config.DispatchLogNone, config.DispatchLogMemory:
		return fmt.Errorf("dispatch log %q is not persistent", cfg.DispatchLog.Backend)
	}

	a := &app{}
	defer a.Close()

	log, err := a.openDispatchLog(cmd.Context(), cfg.DispatchLog)
	if err != nil {
		return err
	}

	recs, err := log.RecentDispatches(cmd.Context(), dispatchLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSESSION\tOUTCOME\tSTATUS\tDURATION\tSTALE")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%t\n",
			r.StartedAt.Format(time.RFC3339), r.SessionID, r.Outcome, r.Status,
			r.Duration.Round(time.Millisecond), r.Stale)
	}
	return w.Flush()
}
