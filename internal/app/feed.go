package app

import (
	"context"

	"github.com/managershow/esteira/internal/events"
	"github.com/managershow/esteira/internal/models"
)

// FromEvents converts daemon events into stage changes, dropping anything
// that is not a board change. The returned channel closes when in closes
// or ctx is done.
func FromEvents(ctx context.Context, in <-chan events.Event) <-chan models.StageChange {
	out := make(chan models.StageChange)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-in:
				if !ok {
					return
				}
				if !ev.IsBoardChange() {
					continue
				}
				select {
				case out <- ev.StageChange():
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
