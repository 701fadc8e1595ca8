package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swarmcap/internal/artifact"
	"swarmcap/internal/batch"
	"swarmcap/internal/config"
	"swarmcap/internal/llm"
	"swarmcap/internal/robot"
	"swarmcap/internal/session"
)

var (
	runInstruction string
	runContext     string
	runRender      bool
	runTimeout     time.Duration
)

// runCmd generates one controller
var runCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Generate one controller for a task",
	Long: `Prompts the model for a controller for the task, synthesizes every
missing helper and writes the assembled program to
{workspace}/{task}/{task}_{timestamp}_{suffix}/main.go.

Example:
  swarmcap run flocking
  swarmcap run encircling --instruction "Surround the prey at 0.5 m"`,
	Args: cobra.ExactArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVarP(&runInstruction, "instruction", "i", "", "Instruction (default: the task's catalog instruction)")
	runCmd.Flags().StringVar(&runContext, "context", "", "Extra context appended to the prompt")
	runCmd.Flags().BoolVar(&runRender, "render", false, "Render the program as markdown")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Run timeout (0 = none)")
}

func runTask(cmd *cobra.Command, args []string) error {
	task := args[0]
	if _, err := robot.LookupTask(task); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := commandContext(runTimeout)
	defer cancel()

	client, err := llm.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	ledger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	if ledger != nil {
		defer ledger.Close()
	}

	logger.Info("Generating controller", zap.String("task", task), zap.String("provider", cfg.LLM.Provider))
	run := newRunFunc(cfg, client, ledger)
	art, err := run(ctx, batch.Job{Task: task, Instruction: runInstruction, Context: runContext})
	if err != nil {
		return err
	}
	logger.Info("Controller written", zap.String("path", art.Path), zap.Strings("helpers", art.Helpers))

	out := cmd.OutOrStdout()
	if runRender {
		rendered, err := renderProgram(art)
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
		return nil
	}
	fmt.Fprintln(out, art.Path)
	return nil
}

// newRunFunc builds a fresh mock world and session for every run.
func newRunFunc(cfg *config.Config, client llm.Client, ledger *artifact.Ledger) batch.RunFunc {
	store := artifact.NewStore(cfg.Workspace.Root)
	return func(ctx context.Context, job batch.Job) (*artifact.Artifact, error) {
		world := robot.NewWorld(robot.WorldConfig{
			Robots:    cfg.Simulation.Robots,
			Obstacles: cfg.Simulation.Obstacles,
			Seed:      cfg.Simulation.Seed,
			Extent:    cfg.Simulation.Extent,
		})
		host, ok := world.Robot(0)
		if !ok {
			return nil, fmt.Errorf("simulation.robots must be at least 1")
		}

		opts := []session.Option{session.WithStore(store)}
		if ledger != nil {
			opts = append(opts, session.WithLedger(ledger))
		}
		s, err := session.New(cfg, job.Task, host, client, opts...)
		if err != nil {
			return nil, err
		}
		return s.Run(ctx, job.Instruction, job.Context)
	}
}

func renderProgram(art *artifact.Artifact) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	md := fmt.Sprintf("# %s\n\n`%s`\n\nHelpers: %d\n\n```go\n%s\n```\n", art.Task, art.Path, len(art.Helpers), art.Content)
	return r.Render(md)
}
