// Package registry declares the ordered stages of a board pipeline and the
// column label shown for each one.
package registry

import (
	"errors"
	"fmt"

	"github.com/managershow/esteira/internal/models"
)

var (
	ErrEmptyPipeline  = errors.New("pipeline must declare at least one stage")
	ErrDuplicateStage = errors.New("stage declared more than once")
	ErrEmptyStage     = errors.New("stage identifier cannot be empty")
)

// StageDef declares one column of a pipeline
type StageDef struct {
	Stage    models.Stage `yaml:"stage"`
	Label    string       `yaml:"label"`
	Terminal bool         `yaml:"terminal"`
}

// Registry is the immutable, ordered set of stages of one board.
// It is safe for concurrent use since nothing mutates it after New.
type Registry struct {
	kind  models.Kind
	defs  []StageDef
	index map[models.Stage]int
}

// New builds a registry from stage definitions, in display order.
// A missing label defaults to the stage identifier.
func New(kind models.Kind, defs []StageDef) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%s: %w", kind, ErrEmptyPipeline)
	}

	r := &Registry{
		kind:  kind,
		defs:  make([]StageDef, 0, len(defs)),
		index: make(map[models.Stage]int, len(defs)),
	}

	for _, def := range defs {
		if def.Stage == "" {
			return nil, fmt.Errorf("%s: %w", kind, ErrEmptyStage)
		}
		if _, dup := r.index[def.Stage]; dup {
			return nil, fmt.Errorf("%s: %w: %q", kind, ErrDuplicateStage, def.Stage)
		}
		if def.Label == "" {
			def.Label = string(def.Stage)
		}
		r.index[def.Stage] = len(r.defs)
		r.defs = append(r.defs, def)
	}

	return r, nil
}

// Kind returns the board kind this pipeline belongs to
func (r *Registry) Kind() models.Kind {
	return r.kind
}

// ListStages returns the declared stages in display order.
// The returned slice is a copy.
func (r *Registry) ListStages() []models.Stage {
	stages := make([]models.Stage, len(r.defs))
	for i, def := range r.defs {
		stages[i] = def.Stage
	}
	return stages
}

// Columns returns the stage definitions in display order (copy)
func (r *Registry) Columns() []StageDef {
	out := make([]StageDef, len(r.defs))
	copy(out, r.defs)
	return out
}

// LabelFor returns the column label of a declared stage
func (r *Registry) LabelFor(stage models.Stage) (string, error) {
	i, ok := r.index[stage]
	if !ok {
		return "", models.UnknownStage(stage)
	}
	return r.defs[i].Label, nil
}

// IsDeclared reports whether stage belongs to the pipeline
func (r *Registry) IsDeclared(stage models.Stage) bool {
	_, ok := r.index[stage]
	return ok
}

// IsTerminal reports whether stage is a declared terminal stage
func (r *Registry) IsTerminal(stage models.Stage) bool {
	i, ok := r.index[stage]
	return ok && r.defs[i].Terminal
}

// Index returns the display position of stage, or -1 when undeclared
func (r *Registry) Index(stage models.Stage) int {
	i, ok := r.index[stage]
	if !ok {
		return -1
	}
	return i
}

// Validate returns ErrUnknownStage for undeclared stages
func (r *Registry) Validate(stages ...models.Stage) error {
	for _, s := range stages {
		if !r.IsDeclared(s) {
			return models.UnknownStage(s)
		}
	}
	return nil
}

// First returns the initial stage of the pipeline (where new entities land)
func (r *Registry) First() models.Stage {
	return r.defs[0].Stage
}
