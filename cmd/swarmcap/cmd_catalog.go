package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"swarmcap/internal/robot"
)

var apisScope string

// tasksCmd lists the task catalog
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the swarm tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := newTable("Tasks", "TASK", "APIS")
		for _, task := range robot.Tasks() {
			names, err := robot.APINames(task.Name, "")
			if err != nil {
				return err
			}
			t.addRow(task.Name, fmt.Sprint(len(names)))
		}
		fmt.Fprint(cmd.OutOrStdout(), t.render())
		return nil
	},
}

// apisCmd prints the API listing a task's prompts carry
var apisCmd = &cobra.Command{
	Use:   "apis [task]",
	Short: "Print the robot API listing for a task",
	Long: `Prints the Go declarations of every capability bound for the task, as
shown to the model. --scope limits the listing to local or global APIs.

Example:
  swarmcap apis pursuing --scope local`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := robot.LookupTask(args[0])
		if err != nil {
			return err
		}
		listing, err := robot.APIPrompt(task.Name, apisScope)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, mutedStyle.Render(task.Instruction))
		fmt.Fprintln(out)
		fmt.Fprintln(out, listing)
		return nil
	},
}

func init() {
	apisCmd.Flags().StringVar(&apisScope, "scope", "", "local or global (default: both)")
}
