package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/managershow/esteira/internal/app"
	"github.com/managershow/esteira/internal/models"
	"github.com/managershow/esteira/internal/services/transition"
)

// BoardView is the JSON shape of a board
type BoardView struct {
	TenantID string       `json:"tenant_id"`
	Kind     models.Kind  `json:"kind"`
	Version  uint64       `json:"version"`
	Columns  []ColumnView `json:"columns"`
}

// ColumnView is one stage of a BoardView
type ColumnView struct {
	Stage    models.Stage     `json:"stage"`
	Label    string           `json:"label"`
	Terminal bool             `json:"terminal"`
	Entities []*models.Entity `json:"entities"`
}

// MoveRequest asks to move an entity. From may be omitted, in which case
// the entity's current stage is used.
type MoveRequest struct {
	EntityID string       `json:"entity_id"`
	From     models.Stage `json:"from"`
	To       models.Stage `json:"to"`
	Index    *int         `json:"index"`
}

// MoveResponse reports where the entity ended up
type MoveResponse struct {
	EntityID string       `json:"entity_id"`
	Stage    models.Stage `json:"stage"`
	Position int          `json:"position"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	b, ok := s.board(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, boardView(b))
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	b, ok := s.board(w, r)
	if !ok {
		return
	}

	var req MoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.EntityID == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "entity_id and to are required")
		return
	}

	from := req.From
	if from == "" {
		stage, _, found := b.Store.Locate(req.EntityID)
		if !found {
			writeDomainError(w, fmt.Errorf("%w: %s", models.ErrEntityNotFound, req.EntityID))
			return
		}
		from = stage
	}
	index := models.AppendPosition
	if req.Index != nil {
		index = *req.Index
	}

	if err := b.Committer.AttemptMove(r.Context(), req.EntityID, from, req.To, index); err != nil {
		writeDomainError(w, err)
		return
	}

	stage, pos, _ := b.Store.Locate(req.EntityID)
	writeJSON(w, http.StatusOK, MoveResponse{EntityID: req.EntityID, Stage: stage, Position: pos})
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	b, ok := s.board(w, r)
	if !ok {
		return
	}

	var entity models.Entity
	if !decodeBody(w, r, &entity) {
		return
	}
	entity.TenantID = b.TenantID
	entity.Kind = b.Registry.Kind()
	if entity.Stage == "" {
		entity.Stage = b.Registry.First()
	}
	if err := b.Registry.Validate(entity.Stage); err != nil {
		writeDomainError(w, err)
		return
	}

	created, err := s.app.Store().CreateEntity(r.Context(), &entity)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// The backend's own notification may arrive later or not at all
	if _, err := b.Store.ApplyExternal(models.StageChange{
		TenantID: created.TenantID,
		Kind:     created.Kind,
		EntityID: created.ID,
		Stage:    created.Stage,
		Position: created.Position,
		Entity:   created,
	}); err != nil {
		slog.Warn("created entity not merged into board", "entity_id", created.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	b, ok := s.board(w, r)
	if !ok {
		return
	}
	entity, found := b.Store.Get(chi.URLParam(r, "id"))
	if !found {
		writeDomainError(w, models.ErrEntityNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

// board resolves the tenant and kind URL params, writing the error response
// itself when they are invalid
func (s *Server) board(w http.ResponseWriter, r *http.Request) (*app.Board, bool) {
	tenantID := chi.URLParam(r, "tenant")
	kind := models.Kind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		writeError(w, http.StatusNotFound, "UNKNOWN_BOARD", fmt.Sprintf("unknown board kind %q", kind))
		return nil, false
	}

	b, err := s.app.Board(r.Context(), tenantID, kind)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return b, true
}

func boardView(b *app.Board) BoardView {
	version := b.Store.Version()
	cols := b.Store.Columns()
	view := BoardView{
		TenantID: b.TenantID,
		Kind:     b.Registry.Kind(),
		Version:  version,
		Columns:  make([]ColumnView, 0, len(cols)),
	}
	for _, col := range cols {
		entities := col.Entities
		if entities == nil {
			entities = []*models.Entity{}
		}
		view.Columns = append(view.Columns, ColumnView{
			Stage:    col.Stage,
			Label:    col.Label,
			Terminal: col.Terminal,
			Entities: entities,
		})
	}
	return view
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP statuses
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrUnknownStage):
		return http.StatusBadRequest, "UNKNOWN_STAGE"
	case errors.Is(err, models.ErrInvalidEntity),
		errors.Is(err, transition.ErrInvalidEntityID),
		errors.Is(err, transition.ErrInvalidTenantID):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, models.ErrIllegalTransition):
		return http.StatusUnprocessableEntity, "ILLEGAL_TRANSITION"
	case errors.Is(err, models.ErrStaleState):
		return http.StatusConflict, "STALE_STATE"
	case errors.Is(err, models.ErrSessionConflict):
		return http.StatusConflict, "SESSION_CONFLICT"
	case errors.Is(err, models.ErrTransitionFailed):
		return http.StatusBadGateway, "TRANSITION_FAILED"
	case errors.Is(err, models.ErrEntityNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeError(w, status, code, err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
