// Package board holds the cli commands that read and rearrange boards
// e.g., esteira board show, esteira board move
package board

import (
	"github.com/spf13/cobra"
)

// BoardCmd returns the board parent command
func BoardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show boards and move entities between stages",
	}

	cmd.AddCommand(ShowCmd())
	cmd.AddCommand(MoveCmd())

	return cmd
}
