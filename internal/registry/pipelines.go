package registry

import (
	"fmt"

	"github.com/managershow/esteira/internal/models"
)

// Show lifecycle stages (Agenda board)
const (
	StageSondagem         models.Stage = "SONDAGEM"
	StageProposta         models.Stage = "PROPOSTA"
	StageContratoPendente models.Stage = "CONTRATO_PENDENTE"
	StageAssinado         models.Stage = "ASSINADO"
	StagePreProducao      models.Stage = "PRE_PRODUCAO"
	StageEmEstrada        models.Stage = "EM_ESTRADA"
	StageConcluido        models.Stage = "CONCLUIDO"
)

// Commercial lead stages (CRM board)
const (
	StageProspeccao models.Stage = "PROSPECÇÃO"
	StageContato    models.Stage = "CONTATO"
	StageNegociacao models.Stage = "NEGOCIAÇÃO"
	StageGanho      models.Stage = "GANHO"
	StagePerdido    models.Stage = "PERDIDO"
)

// DefaultShowStages is the Agenda pipeline
func DefaultShowStages() []StageDef {
	return []StageDef{
		{Stage: StageSondagem, Label: "Sondagem"},
		{Stage: StageProposta, Label: "Proposta"},
		{Stage: StageContratoPendente, Label: "Contrato Pendente"},
		{Stage: StageAssinado, Label: "Assinado"},
		{Stage: StagePreProducao, Label: "Pré-produção"},
		{Stage: StageEmEstrada, Label: "Em Estrada"},
		{Stage: StageConcluido, Label: "Concluído", Terminal: true},
	}
}

// DefaultLeadStages is the CRM funnel
func DefaultLeadStages() []StageDef {
	return []StageDef{
		{Stage: StageProspeccao, Label: "Prospecção"},
		{Stage: StageContato, Label: "Contato"},
		{Stage: StageNegociacao, Label: "Negociação"},
		{Stage: StageGanho, Label: "Ganho", Terminal: true},
		{Stage: StagePerdido, Label: "Perdido", Terminal: true},
	}
}

// Default returns the built-in registry for a board kind
func Default(kind models.Kind) (*Registry, error) {
	switch kind {
	case models.KindShow:
		return New(kind, DefaultShowStages())
	case models.KindLead:
		return New(kind, DefaultLeadStages())
	default:
		return nil, fmt.Errorf("no pipeline for board kind %q", kind)
	}
}
