package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prosperitypirate/opencode-memory/internal/config"
	"github.com/prosperitypirate/opencode-memory/internal/engine"
	"github.com/prosperitypirate/opencode-memory/internal/storage"
	"github.com/prosperitypirate/opencode-memory/internal/validate"
	"github.com/prosperitypirate/opencode-memory/pkg/types"
)

// EventBroadcaster pushes a lifecycle frame to every connected
// /memories/stream client.
// Satisfied by *WebSocketHub; kept as an interface so tests can substitute a
// recorder.
type EventBroadcaster interface {
	Broadcast(message interface{})
}

// APIHandlers implements the REST surface the memory service exposes:
// ingestion, listing, search, and delete, plus the health probe.
type APIHandlers struct {
	engine *engine.Engine
	cfg    *config.Config
	hub    EventBroadcaster
}

// NewAPIHandlers wires the engine and config into the REST handlers. hub may
// be nil, in which case lifecycle events are not broadcast.
func NewAPIHandlers(eng *engine.Engine, cfg *config.Config, hub EventBroadcaster) *APIHandlers {
	return &APIHandlers{engine: eng, cfg: cfg, hub: hub}
}

// Health reports unconfigured environment variables. Always 200: the
// response body, not the status code, carries the signal.
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Unconfigured: h.cfg.Unconfigured()})
}

// Memories dispatches POST (ingest) and GET (list) for /memories.
func (h *APIHandlers) Memories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.ingest(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
	}
}

func (h *APIHandlers) ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", "BAD_REQUEST")
		return
	}
	if err := validate.ID("user_id", req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_ID")
		return
	}
	if missing := h.cfg.Unconfigured(); len(missing) > 0 {
		writeError(w, http.StatusServiceUnavailable, "service is not fully configured", "UNCONFIGURED")
		return
	}

	metadata := types.Metadata{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	messages := make([]engine.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = engine.Message{Role: m.Role, Content: m.Content}
	}

	var (
		results []engine.Result
		err     error
	)
	switch {
	case req.InitMode && len(messages) > 0:
		results, err = h.engine.IngestInit(r.Context(), req.UserID, messages[0].Content, metadata)
	case req.SummaryMode:
		results, err = h.engine.IngestSummary(r.Context(), req.UserID, messages, metadata)
	default:
		results, err = h.engine.Ingest(r.Context(), req.UserID, messages, metadata)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "STORE_ERROR")
		return
	}

	resp := IngestResponse{Results: make([]IngestResultDTO, len(results))}
	for i, res := range results {
		resp.Results[i] = IngestResultDTO{ID: res.ID, Memory: res.Memory, Event: res.Event}
		h.notify(res.Event, res.ID, metadata.Type())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandlers) list(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if err := validate.ID("user_id", userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_ID")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	includeSuperseded := r.URL.Query().Get("include_superseded") == "true"

	rows, err := h.engine.List(r.Context(), userID, includeSuperseded, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "STORE_ERROR")
		return
	}

	resp := ListResponse{Memories: make([]MemoryDTO, len(rows))}
	for i, m := range rows {
		resp.Memories[i] = toMemoryDTO(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Search handles POST /memories/search.
func (h *APIHandlers) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", "BAD_REQUEST")
		return
	}
	if err := validate.ID("user_id", req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_ID")
		return
	}
	if missing := h.cfg.Unconfigured(); len(missing) > 0 {
		writeError(w, http.StatusServiceUnavailable, "service is not fully configured", "UNCONFIGURED")
		return
	}

	results, err := h.engine.Search(r.Context(), req.UserID, req.Query, engine.SearchOptions{
		Limit:         req.Limit,
		Threshold:     req.Threshold,
		RecencyWeight: req.RecencyWeight,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "STORE_ERROR")
		return
	}

	resp := SearchResponse{Results: make([]SearchResultDTO, len(results))}
	for i, res := range results {
		resp.Results[i] = SearchResultDTO{
			Score:     res.Score,
			Memory:    res.Memory,
			Chunk:     res.Chunk,
			Metadata:  res.Metadata,
			CreatedAt: res.CreatedAt,
			Date:      res.Date,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteMemory handles DELETE /memories/{memory_id}?user_id=.
func (h *APIHandlers) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
		return
	}

	memoryID := r.PathValue("memory_id")
	userID := r.URL.Query().Get("user_id")
	if err := validate.ID("memory_id", memoryID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_ID")
		return
	}
	if err := validate.ID("user_id", userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_ID")
		return
	}

	if err := h.engine.Delete(r.Context(), userID, memoryID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "memory not found", "NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), "STORE_ERROR")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandlers) notify(event, id string, factType types.FactType) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(map[string]interface{}{
		"event": event,
		"id":    id,
		"type":  string(factType),
	})
}

func toMemoryDTO(m *types.Memory) MemoryDTO {
	return MemoryDTO{
		ID:        m.ID,
		Memory:    m.Memory,
		Chunk:     m.Chunk,
		Metadata:  map[string]interface{}(m.Metadata),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
