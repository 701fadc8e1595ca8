package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swarmcap/internal/batch"
	"swarmcap/internal/llm"
	"swarmcap/internal/robot"
)

var (
	batchTasks   []string
	batchRepeat  int
	batchWorkers int
	batchTimeout time.Duration
)

// batchCmd fans runs out over a worker pool
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate controllers for many tasks concurrently",
	Long: `Runs every task --repeat times on --workers concurrent sessions. Each
run gets its own session and mock world and its own --timeout. Failures are
per run. A run log is written to {workspace}/{batch.log_dir}.

Example:
  swarmcap batch --tasks encircling,covering --repeat 10 --workers 5`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringSliceVar(&batchTasks, "tasks", nil, "Tasks to run (default: all)")
	batchCmd.Flags().IntVar(&batchRepeat, "repeat", 0, "Runs per task (default: batch.repeat)")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "Concurrent runs (default: batch.workers)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 0, "Per-run timeout (default: batch.timeout)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	tasks := batchTasks
	if len(tasks) == 0 {
		tasks = robot.TaskNames()
	}
	jobs := make([]batch.Job, 0, len(tasks))
	for _, task := range tasks {
		if _, err := robot.LookupTask(task); err != nil {
			return err
		}
		jobs = append(jobs, batch.Job{Task: task})
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if batchRepeat > 0 {
		cfg.Batch.Repeat = batchRepeat
	}
	if batchWorkers > 0 {
		cfg.Batch.Workers = batchWorkers
	}
	if batchTimeout > 0 {
		cfg.Batch.Timeout = batchTimeout.String()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := commandContext(0)
	defer cancel()

	client, err := llm.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	ledger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	opts := []batch.Option{
		batch.WithWorkers(cfg.Batch.Workers),
		batch.WithRepeat(cfg.Batch.Repeat),
		batch.WithTimeout(cfg.GetBatchTimeout()),
	}
	if ledger != nil {
		defer ledger.Close()
		opts = append(opts, batch.WithLedger(ledger))
	}
	if cfg.Batch.LogDir != "" {
		opts = append(opts, batch.WithLogDir(filepath.Join(cfg.Workspace.Root, cfg.Batch.LogDir)))
	}

	logger.Info("Starting batch",
		zap.Strings("tasks", tasks),
		zap.Int("repeat", cfg.Batch.Repeat),
		zap.Int("workers", cfg.Batch.Workers),
		zap.Duration("timeout", cfg.GetBatchTimeout()))

	// the runner records each run; sessions must not record twice
	runner := batch.NewRunner(newRunFunc(cfg, client, nil), opts...)
	summary, runErr := runner.Run(ctx, jobs)

	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
	if runErr != nil {
		return runErr
	}
	if summary.Success == 0 && summary.Total() > 0 {
		return fmt.Errorf("all %d runs failed", summary.Total())
	}
	return nil
}

func renderSummary(s *batch.Summary) string {
	t := newTable("Batch summary", "#", "TASK", "STATUS", "TIME", "DETAIL")
	for _, res := range s.Results {
		detail := ""
		switch {
		case res.Err != nil:
			detail = res.Err.Error()
		case res.Artifact != nil:
			detail = res.Artifact.Path
		}
		t.addRow(
			strconv.Itoa(res.Index),
			res.Job.Task,
			statusStyle(res.Status).Render(res.Status),
			res.Duration.Round(time.Millisecond).String(),
			detail,
		)
	}

	totals := fmt.Sprintf("%s  %s  %s  total %d",
		statusStyle("success").Render(fmt.Sprintf("✓ %d", s.Success)),
		statusStyle("timeout").Render(fmt.Sprintf("⏱ %d", s.Timeout)),
		statusStyle("error").Render(fmt.Sprintf("✗ %d", s.Error)),
		s.Total())
	if s.LogPath != "" {
		totals += "\n" + mutedStyle.Render("log: "+s.LogPath)
	}
	return t.render() + boxStyle.Render(totals)
}
