package board

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/managershow/esteira/internal/cli"
	"github.com/managershow/esteira/internal/models"
)

// MoveCmd returns the board move subcommand
func MoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move an entity to another stage",
		Long: `Move an entity to a stage, optionally at a given position.

The move runs as a full drag gesture: pick up, hover over the target stage,
drop. If the backend rejects the write the board is rolled back and the
command exits with code 7.

Examples:
  # Move to the end of a stage
  esteira board move --tenant=acme --id=3f2a... --to=PROPOSTA

  # Move to the top of a stage
  esteira board move --tenant=acme --id=3f2a... --to=ASSINADO --index=0

  # Reorder within the CRM
  esteira board move --tenant=acme --kind=leads --id=9c1e... --to=CONTATO --index=2 --json
`,
		RunE: runMove,
	}

	cli.AddBoardFlags(cmd)
	cmd.Flags().String("id", "", "Entity ID (required)")
	cmd.Flags().String("to", "", "Target stage (required)")
	cmd.Flags().Int("index", -1, "Target position in the stage; -1 appends")
	for _, name := range []string{"id", "to"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			slog.Error("failed to mark flag as required", "flag", name, "error", err)
		}
	}
	cli.AddOutputFlags(cmd)

	return cmd
}

func runMove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	formatter := cli.GetFormatter(cmd)

	entityID, _ := cmd.Flags().GetString("id")
	target, _ := cmd.Flags().GetString("to")
	index, _ := cmd.Flags().GetInt("index")
	if index < 0 {
		index = models.AppendPosition
	}

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

	b, err := cliInstance.App.Board(ctx, tenantID, kind)
	if err != nil {
		return formatter.Fail(err)
	}

	toStage := models.Stage(target)
	if err := b.Registry.Validate(toStage); err != nil {
		return formatter.FailWithSuggestion(err,
			fmt.Sprintf("Available stages: %v", b.Registry.ListStages()))
	}

	ctrl := b.NewController()
	session, err := ctrl.Begin(entityID)
	if err != nil {
		return formatter.FailWithSuggestion(err,
			fmt.Sprintf("Use 'esteira board show --tenant=%s --kind=%s --quiet' to list entity IDs", tenantID, kind))
	}
	fromStage := session.OriginStage

	if err := ctrl.Hover(toStage); err != nil {
		_ = ctrl.Cancel()
		return formatter.Fail(err)
	}
	if err := ctrl.Drop(ctx, index); err != nil {
		return formatter.Fail(err)
	}

	stage, position, _ := b.Store.Locate(entityID)

	if formatter.Quiet {
		fmt.Fprintln(cmd.OutOrStdout(), entityID)
		return nil
	}

	if formatter.JSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"success":    true,
			"entity_id":  entityID,
			"from_stage": fromStage,
			"to_stage":   stage,
			"position":   position,
		})
	}

	fromLabel, _ := b.Registry.LabelFor(fromStage)
	toLabel, _ := b.Registry.LabelFor(stage)
	if fromStage == stage {
		fmt.Fprintf(cmd.OutOrStdout(), "Entity %s reordered in '%s' (position %d)\n", entityID, toLabel, position)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Entity %s moved from '%s' to '%s' (position %d)\n", entityID, fromLabel, toLabel, position)
	}
	return nil
}
