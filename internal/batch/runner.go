// Package batch fans independent synthesis runs out over a bounded worker
// pool and reports how each one ended.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"swarmcap/internal/artifact"
	"swarmcap/internal/logging"
)

// Job is one task to generate a controller for.
type Job struct {
	Task        string
	Instruction string // empty uses the task's catalog instruction
	Context     string
}

// RunFunc performs one run. Implementations build a fresh session per call;
// runs never share state.
type RunFunc func(ctx context.Context, job Job) (*artifact.Artifact, error)

// Result is the outcome of one run.
type Result struct {
	Index    int
	Job      Job
	Status   string
	Artifact *artifact.Artifact
	Err      error
	Duration time.Duration
}

// Summary aggregates a batch.
type Summary struct {
	Results []Result // ordered by index
	Success int
	Timeout int
	Error   int
	LogPath string
}

// Total returns the number of runs.
func (s *Summary) Total() int {
	return len(s.Results)
}

// Runner executes jobs concurrently.
type Runner struct {
	run     RunFunc
	workers int
	repeat  int
	timeout time.Duration
	ledger  *artifact.Ledger
	logDir  string
	now     func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers bounds the number of concurrent runs.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithRepeat runs every job n times.
func WithRepeat(n int) Option {
	return func(r *Runner) { r.repeat = n }
}

// WithTimeout bounds each run; 0 disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithLedger records every run.
func WithLedger(l *artifact.Ledger) Option {
	return func(r *Runner) { r.ledger = l }
}

// WithLogDir writes a run log into dir.
func WithLogDir(dir string) Option {
	return func(r *Runner) { r.logDir = dir }
}

// NewRunner creates a runner around run.
func NewRunner(run RunFunc, opts ...Option) *Runner {
	r := &Runner{run: run, workers: 1, repeat: 1, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = 1
	}
	if r.repeat < 1 {
		r.repeat = 1
	}
	return r
}

// Run executes every job repeat times. A failing run never cancels its
// siblings. The returned error is set only when the log cannot be written or
// ctx ends before the batch does; the summary is always returned.
func (r *Runner) Run(ctx context.Context, jobs []Job) (*Summary, error) {
	var expanded []Job
	for _, job := range jobs {
		for i := 0; i < r.repeat; i++ {
			expanded = append(expanded, job)
		}
	}

	summary := &Summary{}
	log := io.Discard
	if r.logDir != "" {
		if err := os.MkdirAll(r.logDir, 0755); err != nil {
			return summary, fmt.Errorf("failed to create log directory: %w", err)
		}
		summary.LogPath = filepath.Join(r.logDir, fmt.Sprintf("run_log_%s.txt", r.now().Format("20060102_150405")))
		f, err := os.Create(summary.LogPath)
		if err != nil {
			return summary, fmt.Errorf("failed to create run log: %w", err)
		}
		defer f.Close()
		log = f
	}
	fmt.Fprintf(log, "=== Run started at %s ===\n\n", r.now().Format(time.RFC3339))
	logging.Batch("batch of %d runs (%d jobs x %d) on %d workers", len(expanded), len(jobs), r.repeat, r.workers)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.workers)
	for idx, job := range expanded {
		g.Go(func() error {
			res := r.execute(ctx, idx, job)

			mu.Lock()
			defer mu.Unlock()
			summary.Results = append(summary.Results, res)
			switch res.Status {
			case artifact.StatusSuccess:
				summary.Success++
			case artifact.StatusTimeout:
				summary.Timeout++
			default:
				summary.Error++
			}
			fmt.Fprintln(log, resultLine(res))
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].Index < summary.Results[j].Index
	})
	fmt.Fprint(log, summary.Report())
	logging.Batch("batch done: %d success, %d timeout, %d error", summary.Success, summary.Timeout, summary.Error)
	return summary, ctx.Err()
}

func (r *Runner) execute(ctx context.Context, idx int, job Job) Result {
	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	logging.Get(logging.CategoryBatch).Debug("[%d] running %s", idx, job.Task)
	started := r.now()
	art, err := r.run(runCtx, job)
	finished := r.now()

	res := Result{Index: idx, Job: job, Artifact: art, Err: err, Duration: finished.Sub(started)}
	res.Status = artifact.StatusOf(err)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		res.Status = artifact.StatusTimeout
	}
	if err != nil {
		logging.BatchWarn("[%d] %s %s: %v", idx, job.Task, res.Status, err)
	}
	runID := ""
	if art != nil {
		runID = art.RunID
	}
	logging.Get(logging.CategoryBatch).StructuredLog("info", runID, "run finished", map[string]interface{}{
		"index":       idx,
		"task":        job.Task,
		"status":      res.Status,
		"duration_ms": res.Duration.Milliseconds(),
	})

	if r.ledger != nil {
		run := &artifact.Run{
			Task:       job.Task,
			Status:     res.Status,
			StartedAt:  started,
			FinishedAt: finished,
		}
		if art != nil {
			run.ID = art.RunID
			run.ArtifactPath = art.Path
			run.Helpers = len(art.Helpers)
		}
		if err != nil {
			run.Error = err.Error()
		}
		if lerr := r.ledger.Record(context.WithoutCancel(ctx), run); lerr != nil {
			logging.BatchWarn("[%d] ledger: %v", idx, lerr)
		}
	}
	return res
}

func resultLine(res Result) string {
	switch res.Status {
	case artifact.StatusSuccess:
		path := ""
		if res.Artifact != nil {
			path = res.Artifact.Path
		}
		return fmt.Sprintf("[✓] %d SUCCESS | %s | %s", res.Index, res.Job.Task, path)
	case artifact.StatusTimeout:
		return fmt.Sprintf("[⏱] %d TIMEOUT | %s", res.Index, res.Job.Task)
	default:
		return fmt.Sprintf("[✗] %d ERROR | %s | %v", res.Index, res.Job.Task, res.Err)
	}
}

// Report renders the summary block written at the end of the run log.
func (s *Summary) Report() string {
	return fmt.Sprintf("\n=== Execution Summary ===\nTotal Tasks: %d\n✓ Success:   %d\n⏱ Timeout:   %d\n✗ Error:     %d\n",
		s.Total(), s.Success, s.Timeout, s.Error)
}
