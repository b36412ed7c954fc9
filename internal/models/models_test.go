package models

import (
	"errors"
	"strings"
	"testing"
)

// ============================================================================
// Error Tests
// ============================================================================

func TestErrors_Unique(t *testing.T) {
	all := []error{
		ErrUnknownStage,
		ErrSessionConflict,
		ErrStaleState,
		ErrIllegalTransition,
		ErrTransitionFailed,
		ErrEntityNotFound,
		ErrNoActiveSession,
	}

	for i := range all {
		for j := range all {
			if i != j && errors.Is(all[i], all[j]) {
				t.Errorf("%v should not match %v", all[i], all[j])
			}
		}
	}
}

func TestTransitionFailedError_MatchesSentinelAndCause(t *testing.T) {
	cause := errors.New("network down")
	err := error(&TransitionFailedError{EntityID: "E1", From: "LEAD", To: "NEGOTIATION", Err: cause})

	if !errors.Is(err, ErrTransitionFailed) {
		t.Error("expected errors.Is(err, ErrTransitionFailed)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is(err, cause)")
	}

	var tfe *TransitionFailedError
	if !errors.As(err, &tfe) {
		t.Fatal("expected errors.As to find *TransitionFailedError")
	}
	if tfe.EntityID != "E1" {
		t.Errorf("EntityID = %q, want E1", tfe.EntityID)
	}
}

func TestUnknownStage_Wraps(t *testing.T) {
	err := UnknownStage("ARCHIVED")
	if !errors.Is(err, ErrUnknownStage) {
		t.Errorf("UnknownStage() = %v, want wrapped ErrUnknownStage", err)
	}
	if err.Error() != `unknown stage: "ARCHIVED"` {
		t.Errorf("unexpected message %q", err.Error())
	}
}

// ============================================================================
// Struct Tests
// ============================================================================

func TestDragSession_TargetStage(t *testing.T) {
	s := &DragSession{EntityID: "E1", OriginStage: "LEAD"}
	if got := s.TargetStage(); got != "LEAD" {
		t.Errorf("TargetStage() without hover = %q, want LEAD", got)
	}

	hover := Stage("NEGOTIATION")
	s.HoverStage = &hover
	if got := s.TargetStage(); got != "NEGOTIATION" {
		t.Errorf("TargetStage() with hover = %q, want NEGOTIATION", got)
	}
}

func TestEntity_CloneIsIndependent(t *testing.T) {
	e := &Entity{ID: "E1", Stage: "LEAD", Title: "Show in Recife"}
	c := e.Clone()
	c.Stage = "NEGOTIATION"

	if e.Stage != "LEAD" {
		t.Errorf("original stage changed to %q", e.Stage)
	}

	var nilEntity *Entity
	if nilEntity.Clone() != nil {
		t.Error("Clone() of nil entity should be nil")
	}
}

func TestEntity_Validate(t *testing.T) {
	valid := func() *Entity {
		return &Entity{TenantID: "t1", Kind: KindShow, Stage: "LEAD", Title: "Show in Recife"}
	}

	tests := []struct {
		name    string
		mutate  func(e *Entity)
		wantErr bool
	}{
		{"valid without ID", func(e *Entity) {}, false},
		{"missing tenant", func(e *Entity) { e.TenantID = "" }, true},
		{"unknown kind", func(e *Entity) { e.Kind = "tasks" }, true},
		{"missing stage", func(e *Entity) { e.Stage = "" }, true},
		{"blank title", func(e *Entity) { e.Title = "  " }, true},
		{"title too long", func(e *Entity) { e.Title = strings.Repeat("a", MaxTitleLength+1) }, true},
		{"ID too long", func(e *Entity) { e.ID = strings.Repeat("x", MaxEntityIDLength+1) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			err := e.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidEntity) {
				t.Fatalf("Validate() = %v, want ErrInvalidEntity", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
		})
	}

	var nilEntity *Entity
	if !errors.Is(nilEntity.Validate(), ErrInvalidEntity) {
		t.Error("nil entity should be invalid")
	}
}

func TestColumn_IndexOf(t *testing.T) {
	col := &Column{Stage: "LEAD", Entities: []*Entity{{ID: "E1"}, {ID: "E2"}}}

	if got := col.IndexOf("E2"); got != 1 {
		t.Errorf("IndexOf(E2) = %d, want 1", got)
	}
	if got := col.IndexOf("missing"); got != -1 {
		t.Errorf("IndexOf(missing) = %d, want -1", got)
	}
	if col.Len() != 2 {
		t.Errorf("Len() = %d, want 2", col.Len())
	}
}

func TestKind_Valid(t *testing.T) {
	if !KindShow.Valid() || !KindLead.Valid() {
		t.Error("built-in kinds should be valid")
	}
	if Kind("tickets").Valid() {
		t.Error("unknown kind should be invalid")
	}
}

func TestDragState_String(t *testing.T) {
	tests := map[DragState]string{
		DragIdle:      "idle",
		DragDragging:  "dragging",
		DragDropping:  "dropping",
		DragCanceled:  "canceled",
		DragState(42): "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("DragState(%d).String() = %q, want %q", state, got, want)
		}
	}
}
