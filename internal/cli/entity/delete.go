package entity

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/managershow/esteira/internal/cli"
)

// DeleteCmd returns the entity delete subcommand
func DeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an entity",
		Long: `Delete an entity and close the gap it leaves in its stage.

Examples:
  esteira entity delete --tenant=acme --id=3f2a...
  esteira entity delete --tenant=acme --kind=leads --id=9c1e... --json
`,
		RunE: runDelete,
	}

	cli.AddBoardFlags(cmd)
	cmd.Flags().String("id", "", "Entity ID (required)")
	if err := cmd.MarkFlagRequired("id"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}
	cli.AddOutputFlags(cmd)

	return cmd
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	formatter := cli.GetFormatter(cmd)
	entityID, _ := cmd.Flags().GetString("id")

	tenantID, err := cli.GetTenant(cmd)
	if err != nil {
		return formatter.Fail(err)
	}
	kind, err := cli.GetKind(cmd)
	if err != nil {
		return formatter.Fail(err)
	}

	cliInstance, err := cli.GetCLIFromContext(ctx)
	if err != nil {
		return formatter.Fail(err)
	}
	defer func() {
		if err := cliInstance.Close(); err != nil {
			slog.Error("failed to close CLI", "error", err)
		}
	}()

	if err := cliInstance.App.Store().DeleteEntity(ctx, tenantID, kind, entityID); err != nil {
		return formatter.Fail(err)
	}

	if formatter.Quiet {
		fmt.Fprintln(cmd.OutOrStdout(), entityID)
		return nil
	}
	if formatter.JSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"success":   true,
			"entity_id": entityID,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Entity %s deleted\n", entityID)
	return nil
}
