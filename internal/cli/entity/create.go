package entity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/managershow/esteira/internal/cli"
	"github.com/managershow/esteira/internal/models"
)

const dateLayout = "2006-01-02"

// CreateCmd returns the entity create subcommand
func CreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a show or lead",
		Long: `Create an entity on a board. Without --stage it lands in the first stage.

Examples:
  # New show inquiry on the Agenda
  esteira entity create --tenant=acme --title="Festival de Inverno" --city=Curitiba --date=2026-07-18

  # New CRM lead, capturing the ID
  LEAD_ID=$(esteira entity create --tenant=acme --kind=leads --title="Prefeitura de Olinda" --quiet)
`,
		RunE: runCreate,
	}

	cli.AddBoardFlags(cmd)
	cmd.Flags().String("title", "", "Entity title (required)")
	if err := cmd.MarkFlagRequired("title"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}
	cmd.Flags().String("stage", "", "Initial stage (defaults to the first stage)")
	cmd.Flags().String("counterpart", "", "Contractor name")
	cmd.Flags().String("city", "", "City")
	cmd.Flags().String("date", "", "Date as YYYY-MM-DD")
	cmd.Flags().Int("index", -1, "Position in the stage; -1 appends")
	cli.AddOutputFlags(cmd)

	return cmd
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	formatter := cli.GetFormatter(cmd)

	tenantID, err := cli.GetTenant(cmd)
	if err != nil {
		return formatter.Fail(err)
	}
	kind, err := cli.GetKind(cmd)
	if err != nil {
		return formatter.Fail(err)
	}

	title, _ := cmd.Flags().GetString("title")
	stage, _ := cmd.Flags().GetString("stage")
	counterpart, _ := cmd.Flags().GetString("counterpart")
	city, _ := cmd.Flags().GetString("city")
	dateStr, _ := cmd.Flags().GetString("date")
	index, _ := cmd.Flags().GetInt("index")

	var date time.Time
	if dateStr != "" {
		date, err = time.Parse(dateLayout, dateStr)
		if err != nil {
			return formatter.Fail(fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", cli.ErrUsage, dateStr))
		}
	}
	if index < 0 {
		index = models.AppendPosition
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

	reg, err := cliInstance.App.Config().Registry(kind)
	if err != nil {
		return formatter.Fail(err)
	}
	target := reg.First()
	if stage != "" {
		target = models.Stage(stage)
	}
	if err := reg.Validate(target); err != nil {
		return formatter.FailWithSuggestion(err, fmt.Sprintf("Available stages: %v", reg.ListStages()))
	}

	created, err := cliInstance.App.Store().CreateEntity(ctx, &models.Entity{
		TenantID:    tenantID,
		Kind:        kind,
		Stage:       target,
		Title:       title,
		Counterpart: counterpart,
		City:        city,
		Date:        date,
		Position:    index,
	})
	if err != nil {
		return formatter.Fail(err)
	}

	if formatter.Quiet {
		fmt.Fprintln(cmd.OutOrStdout(), created.ID)
		return nil
	}

	if formatter.JSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"success": true,
			"entity":  created,
		})
	}

	label, _ := reg.LabelFor(created.Stage)
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s '%s' created (ID: %s)\n", kindNoun(kind), created.Title, created.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "  Stage: %s (position %d)\n", label, created.Position)
	return nil
}

func kindNoun(kind models.Kind) string {
	if kind == models.KindLead {
		return "Lead"
	}
	return "Show"
}
