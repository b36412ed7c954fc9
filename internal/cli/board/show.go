package board

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/managershow/esteira/internal/cli"
	"github.com/managershow/esteira/internal/cli/styles"
	"github.com/managershow/esteira/internal/models"
)

// ShowCmd returns the board show subcommand
func ShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a board's columns and entities",
		Long: `Print every stage of a board with its entities in order.

Examples:
  # Agenda board of a tenant
  esteira board show --tenant=acme

  # CRM board as JSON
  esteira board show --tenant=acme --kind=leads --json

  # Entity IDs only, one per line
  esteira board show --tenant=acme --quiet
`,
		RunE: runShow,
	}

	cli.AddBoardFlags(cmd)
	cli.AddOutputFlags(cmd)

	return cmd
}

type boardOutput struct {
	TenantID string         `json:"tenant_id"`
	Kind     models.Kind    `json:"kind"`
	Version  uint64         `json:"version"`
	Columns  []columnOutput `json:"columns"`
}

type columnOutput struct {
	Stage    models.Stage     `json:"stage"`
	Label    string           `json:"label"`
	Terminal bool             `json:"terminal"`
	Entities []*models.Entity `json:"entities"`
}

func runShow(cmd *cobra.Command, args []string) error {
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
	columns := b.Store.Columns()

	if formatter.Quiet {
		for _, col := range columns {
			for _, e := range col.Entities {
				fmt.Fprintln(cmd.OutOrStdout(), e.ID)
			}
		}
		return nil
	}

	if formatter.JSON {
		out := boardOutput{
			TenantID: tenantID,
			Kind:     kind,
			Version:  b.Store.Version(),
			Columns:  make([]columnOutput, 0, len(columns)),
		}
		for _, col := range columns {
			entities := col.Entities
			if entities == nil {
				entities = []*models.Entity{}
			}
			out.Columns = append(out.Columns, columnOutput{
				Stage:    col.Stage,
				Label:    col.Label,
				Terminal: col.Terminal,
				Entities: entities,
			})
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"success": true,
			"board":   out,
		})
	}

	styles.Init(cliInstance.App.Config().Theme)
	fmt.Fprintln(cmd.OutOrStdout(), styles.RenderBoard(fmt.Sprintf("%s / %s", tenantID, kind), columns))
	return nil
}
