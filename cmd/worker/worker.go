package worker

import "github.com/spf13/cobra"

// NewWorkerCmd groups the long-running consumer commands.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background consumers",
	}
	cmd.AddCommand(analyticsCmd)
	return cmd
}
