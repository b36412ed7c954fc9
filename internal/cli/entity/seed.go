package entity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/managershow/esteira/internal/cli"
	"github.com/managershow/esteira/internal/models"
	"github.com/managershow/esteira/internal/registry"
)

type sample struct {
	kind        models.Kind
	stage       models.Stage
	title       string
	counterpart string
	city        string
	inDays      int
}

// samples fills both built-in pipelines so every stage has something to drag
var samples = []sample{
	{models.KindShow, registry.StageSondagem, "Festival de Inverno", "Fundação Cultural", "Curitiba", 60},
	{models.KindShow, registry.StageSondagem, "Aniversário da Cidade", "Prefeitura de Olinda", "Olinda", 90},
	{models.KindShow, registry.StageProposta, "Rodeio de Barretos", "Os Independentes", "Barretos", 45},
	{models.KindShow, registry.StageContratoPendente, "Réveillon Copacabana", "Riotur", "Rio de Janeiro", 120},
	{models.KindShow, registry.StageAssinado, "Festa do Peão", "Clube do Cavalo", "Jaguariúna", 30},
	{models.KindShow, registry.StagePreProducao, "São João de Caruaru", "Fundação de Cultura", "Caruaru", 14},
	{models.KindShow, registry.StageEmEstrada, "Turnê Sul", "Opus Entretenimento", "Porto Alegre", 2},
	{models.KindShow, registry.StageConcluido, "Virada Cultural", "Secretaria de Cultura", "São Paulo", -20},
	{models.KindLead, registry.StageProspeccao, "Casa de shows Vivo Rio", "", "Rio de Janeiro", 0},
	{models.KindLead, registry.StageProspeccao, "Festival Coquetel Molotov", "", "Recife", 0},
	{models.KindLead, registry.StageContato, "Sesc Pompeia", "", "São Paulo", 0},
	{models.KindLead, registry.StageNegociacao, "Prefeitura de Maceió", "", "Maceió", 0},
	{models.KindLead, registry.StageGanho, "Arena Fonte Nova", "", "Salvador", 0},
	{models.KindLead, registry.StagePerdido, "Teatro Municipal", "", "Belo Horizonte", 0},
}

// SeedCmd returns the entity seed subcommand
func SeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill a tenant's boards with sample shows and leads",
		Long: `Create sample entities across every stage of both built-in pipelines.
Useful for trying the board commands and the HTTP API.

Examples:
  esteira entity seed --tenant=demo
`,
		RunE: runSeed,
	}

	cmd.Flags().String("tenant", "", "Tenant ID (defaults to $"+cli.TenantEnv+")")
	cli.AddOutputFlags(cmd)

	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	formatter := cli.GetFormatter(cmd)

	tenantID, err := cli.GetTenant(cmd)
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

	today := time.Now().UTC().Truncate(24 * time.Hour)
	ids := make([]string, 0, len(samples))
	for _, s := range samples {
		reg, err := cliInstance.App.Config().Registry(s.kind)
		if err != nil {
			return formatter.Fail(err)
		}
		// Configured pipelines may not declare the built-in stages
		stage := s.stage
		if !reg.IsDeclared(stage) {
			stage = reg.First()
		}

		e := &models.Entity{
			TenantID:    tenantID,
			Kind:        s.kind,
			Stage:       stage,
			Title:       s.title,
			Counterpart: s.counterpart,
			City:        s.city,
			Position:    models.AppendPosition,
		}
		if s.kind == models.KindShow {
			e.Date = today.AddDate(0, 0, s.inDays)
		}

		created, err := cliInstance.App.Store().CreateEntity(ctx, e)
		if err != nil {
			return formatter.Fail(err)
		}
		ids = append(ids, created.ID)
	}

	if formatter.Quiet {
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	}
	if formatter.JSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"success": true,
			"created": ids,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Seeded %d entities for tenant %s\n", len(ids), tenantID)
	return nil
}
