package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/outlet-pos/api/internal/allocator"
	"github.com/outlet-pos/api/internal/enum"
)

// TableServicer defines the floor operations.
// Satisfied by *service.TableService; narrow interface for testability.
type TableServicer interface {
	List(ctx context.Context, outletID uuid.UUID) ([]allocator.Table, error)
	Recommend(ctx context.Context, outletID uuid.UUID, partySize int32) (allocator.Recommendation, error)
	Merge(ctx context.Context, outletID uuid.UUID, ids []uuid.UUID, newCapacity int32) ([]allocator.Table, error)
	Split(ctx context.Context, outletID, id uuid.UUID) ([]allocator.Table, error)
	SetStatus(ctx context.Context, outletID, id uuid.UUID, status enum.TableStatus) ([]allocator.Table, error)
	AutoAssign(ctx context.Context, outletID uuid.UUID) (allocator.Assignment, error)
}

// TableHandler handles the floor plan.
type TableHandler struct {
	svc TableServicer
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(svc TableServicer) *TableHandler {
	return &TableHandler{svc: svc}
}

// RegisterRoutes registers table endpoints on the given Chi router.
// Expected to be mounted inside an outlet-scoped subrouter: /outlets/{oid}/tables
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/recommend", h.Recommend)
	r.Post("/merge", h.Merge)
	r.Post("/{tid}/split", h.Split)
	r.Patch("/{tid}", h.SetStatus)
	r.Post("/auto-assign", h.AutoAssign)
}

type tableResponse struct {
	ID                uuid.UUID  `json:"id"`
	Number            string     `json:"number"`
	Capacity          int32      `json:"capacity"`
	EffectiveCapacity int32      `json:"effective_capacity"`
	Zone              string     `json:"zone"`
	Status            string     `json:"status"`
	ServerID          *uuid.UUID `json:"server_id"`
	MergedInto        *uuid.UUID `json:"merged_into"`
}

type recommendResponse struct {
	Found         bool            `json:"found"`
	Table         *tableResponse  `json:"table"`
	Alternatives  []tableResponse `json:"alternatives"`
	Combination   []tableResponse `json:"combination"`
	TotalCapacity int32           `json:"total_capacity"`
}

type mergeRequest struct {
	TableIDs    []string `json:"table_ids"`
	NewCapacity int32    `json:"new_capacity"`
}

type tableStatusRequest struct {
	Status string `json:"status"`
}

type assignmentResponse struct {
	Tables     []tableResponse  `json:"tables"`
	Load       map[string]int32 `json:"load"`
	Unassigned []tableResponse  `json:"unassigned"`
}

func toTableResponse(t allocator.Table) tableResponse {
	return tableResponse{
		ID:                t.ID,
		Number:            t.Number,
		Capacity:          t.Capacity,
		EffectiveCapacity: t.EffectiveCapacity(),
		Zone:              t.Zone,
		Status:            string(t.Status),
		ServerID:          t.ServerID,
		MergedInto:        t.MergedInto,
	}
}

func toTableResponses(tables []allocator.Table) []tableResponse {
	out := make([]tableResponse, len(tables))
	for i, t := range tables {
		out[i] = toTableResponse(t)
	}
	return out
}

// List handles GET /outlets/{oid}/tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	outletID, ok := uuidParam(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	tables, err := h.svc.List(r.Context(), outletID)
	if err != nil {
		writeError(w, "list tables", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponses(tables))
}

// Recommend handles GET /outlets/{oid}/tables/recommend?party=N.
func (h *TableHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	outletID, ok := uuidParam(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	party, err := strconv.ParseInt(r.URL.Query().Get("party"), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "party must be a number"})
		return
	}

	rec, err := h.svc.Recommend(r.Context(), outletID, int32(party))
	if err != nil {
		writeError(w, "recommend table", err)
		return
	}
	resp := recommendResponse{
		Found:         rec.Found(),
		Alternatives:  toTableResponses(rec.Alternatives),
		Combination:   toTableResponses(rec.Combination),
		TotalCapacity: rec.TotalCapacity,
	}
	if rec.Table != nil {
		t := toTableResponse(*rec.Table)
		resp.Table = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

// Merge handles POST /outlets/{oid}/tables/merge. The first id becomes the
// primary table.
func (h *TableHandler) Merge(w http.ResponseWriter, r *http.Request) {
	outletID, ok := uuidParam(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	var req mergeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ids := make([]uuid.UUID, 0, len(req.TableIDs))
	for _, s := range req.TableIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table id " + strconv.Quote(s)})
			return
		}
		ids = append(ids, id)
	}

	tables, err := h.svc.Merge(r.Context(), outletID, ids, req.NewCapacity)
	if err != nil {
		writeError(w, "merge tables", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponses(tables))
}

// Split handles POST /outlets/{oid}/tables/{tid}/split.
func (h *TableHandler) Split(w http.ResponseWriter, r *http.Request) {
	outletID, ok := uuidParam(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	tableID, ok := uuidParam(w, r, "tid", "table ID")
	if !ok {
		return
	}
	tables, err := h.svc.Split(r.Context(), outletID, tableID)
	if err != nil {
		writeError(w, "split tables", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponses(tables))
}

// SetStatus handles PATCH /outlets/{oid}/tables/{tid}.
func (h *TableHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	outletID, ok := uuidParam(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	tableID, ok := uuidParam(w, r, "tid", "table ID")
	if !ok {
		return
	}
	var req tableStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tables, err := h.svc.SetStatus(r.Context(), outletID, tableID, enum.TableStatus(req.Status))
	if err != nil {
		writeError(w, "set table status", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(tables[0]))
}

// AutoAssign handles POST /outlets/{oid}/tables/auto-assign.
func (h *TableHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	outletID, ok := uuidParam(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	res, err := h.svc.AutoAssign(r.Context(), outletID)
	if err != nil {
		writeError(w, "auto-assign tables", err)
		return
	}
	load := make(map[string]int32, len(res.Load))
	for id, n := range res.Load {
		load[id.String()] = n
	}
	writeJSON(w, http.StatusOK, assignmentResponse{
		Tables:     toTableResponses(res.Tables),
		Load:       load,
		Unassigned: toTableResponses(res.Unassigned),
	})
}
