// Package entity holds the cli commands that manage shows and leads
// e.g., esteira entity create, esteira entity seed
package entity

import (
	"github.com/spf13/cobra"
)

// EntityCmd returns the entity parent command
func EntityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Manage shows and leads",
	}

	cmd.AddCommand(CreateCmd())
	cmd.AddCommand(ShowCmd())
	cmd.AddCommand(DeleteCmd())
	cmd.AddCommand(SeedCmd())

	return cmd
}
