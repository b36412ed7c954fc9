// Package use holds all cli commands related to setting contextual information
// e.g., esteira use ...
package use

import (
	"github.com/spf13/cobra"
)

// UseCmd returns the use parent command
func UseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use",
		Short: "Set contextual information for the current shell",
	}

	cmd.AddCommand(TenantCmd())

	return cmd
}
