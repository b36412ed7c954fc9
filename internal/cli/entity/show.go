package entity

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/managershow/esteira/internal/cli"
	"github.com/managershow/esteira/internal/cli/styles"
)

// ShowCmd returns the entity show subcommand
func ShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show an entity's details",
		RunE:  runShow,
	}

	cli.AddBoardFlags(cmd)
	cmd.Flags().String("id", "", "Entity ID (required)")
	if err := cmd.MarkFlagRequired("id"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}
	cli.AddOutputFlags(cmd)

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
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

	entity, err := cliInstance.App.Store().GetEntity(ctx, tenantID, kind, entityID)
	if err != nil {
		return formatter.Fail(err)
	}

	if formatter.Quiet {
		fmt.Fprintln(cmd.OutOrStdout(), entity.ID)
		return nil
	}

	if formatter.JSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"success": true,
			"entity":  entity,
		})
	}

	label := string(entity.Stage)
	if reg, err := cliInstance.App.Config().Registry(kind); err == nil {
		if l, err := reg.LabelFor(entity.Stage); err == nil {
			label = l
		}
	}
	styles.Init(cliInstance.App.Config().Theme)
	fmt.Fprintln(cmd.OutOrStdout(), styles.RenderEntity(entity, label))
	return nil
}
