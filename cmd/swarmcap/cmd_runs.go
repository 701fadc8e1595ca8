package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"swarmcap/internal/artifact"
)

var (
	runsTask  string
	runsLimit int
)

// runsCmd lists ledger records
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE:  listRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsTask, "task", "", "Only runs of this task")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum runs to list (0 = all)")
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ledger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	if ledger == nil {
		return fmt.Errorf("no run ledger configured (workspace.ledger_path)")
	}
	defer ledger.Close()

	ctx, cancel := commandContext(0)
	defer cancel()

	runs, err := ledger.List(ctx, runsTask, runsLimit)
	if err != nil {
		return err
	}
	counts, err := ledger.Counts(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("no runs recorded"))
		return nil
	}
	t := newTable("Runs", "ID", "TASK", "STATUS", "HELPERS", "STARTED", "TIME", "ARTIFACT")
	for _, r := range runs {
		t.addRow(
			shortID(r.ID),
			r.Task,
			statusStyle(r.Status).Render(r.Status),
			strconv.Itoa(r.Helpers),
			r.StartedAt.Local().Format(time.DateTime),
			r.Duration().Round(time.Millisecond).String(),
			r.ArtifactPath,
		)
	}
	fmt.Fprint(out, t.render())
	fmt.Fprintf(out, "%s %d  %s %d  %s %d\n",
		artifact.StatusSuccess, counts[artifact.StatusSuccess],
		artifact.StatusTimeout, counts[artifact.StatusTimeout],
		artifact.StatusError, counts[artifact.StatusError])
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
