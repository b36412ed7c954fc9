package transition

import (
	"fmt"

	"github.com/managershow/esteira/internal/models"
	"github.com/managershow/esteira/internal/registry"
)

// Policy decides whether a move between two declared stages is allowed.
// Rejections must wrap models.ErrIllegalTransition.
type Policy interface {
	Check(from, to models.Stage) error
}

// PolicyFunc adapts a function to Policy
type PolicyFunc func(from, to models.Stage) error

// Check calls f(from, to)
func (f PolicyFunc) Check(from, to models.Stage) error {
	return f(from, to)
}

// DeclaredOnly accepts every move between declared stages
var DeclaredOnly Policy = PolicyFunc(func(models.Stage, models.Stage) error { return nil })

// TerminalLock forbids leaving a terminal stage. Reordering inside a
// terminal column stays legal.
func TerminalLock(reg *registry.Registry) Policy {
	return PolicyFunc(func(from, to models.Stage) error {
		if from != to && reg.IsTerminal(from) {
			return fmt.Errorf("%w: %s is a terminal stage", models.ErrIllegalTransition, from)
		}
		return nil
	})
}

// Table allows only the listed transitions. Stages missing from the table
// may not be left; same-stage moves are always allowed.
func Table(allowed map[models.Stage][]models.Stage) Policy {
	set := make(map[models.Stage]map[models.Stage]bool, len(allowed))
	for from, tos := range allowed {
		set[from] = make(map[models.Stage]bool, len(tos))
		for _, to := range tos {
			set[from][to] = true
		}
	}

	return PolicyFunc(func(from, to models.Stage) error {
		if from == to || set[from][to] {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", models.ErrIllegalTransition, from, to)
	})
}

// Chain applies policies in order; the first rejection wins
func Chain(policies ...Policy) Policy {
	return PolicyFunc(func(from, to models.Stage) error {
		for _, p := range policies {
			if p == nil {
				continue
			}
			if err := p.Check(from, to); err != nil {
				return err
			}
		}
		return nil
	})
}
