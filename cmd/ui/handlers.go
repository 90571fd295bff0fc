package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trade-bot-console-go/internal/journal"
	"trade-bot-console-go/internal/session"
)

const (
	defaultJournalLimit = 50
	wsWriteWait         = 10 * time.Second
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log        *zap.Logger
	controller *session.Controller
	journal    *journal.Journal
	upgrader   websocket.Upgrader
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, controller *session.Controller, j *journal.Journal) *APIHandler {
	return &APIHandler{
		log:        log.Named("ui"),
		controller: controller,
		journal:    j,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Router wires the API endpoints.
func (h *APIHandler) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthHandler).Methods("GET")
	r.HandleFunc("/ws", h.StreamHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", h.StateHandler).Methods("GET")
	api.HandleFunc("/toggle", h.ToggleHandler).Methods("POST")
	api.HandleFunc("/analyze", h.AnalyzeHandler).Methods("POST")
	api.HandleFunc("/draft", h.DraftHandler).Methods("PUT")
	api.HandleFunc("/config", h.ConfigHandler).Methods("POST")
	api.HandleFunc("/refresh", h.RefreshHandler).Methods("POST")
	api.HandleFunc("/login", h.LoginHandler).Methods("POST")
	api.HandleFunc("/journal", h.JournalHandler).Methods("GET")
	api.HandleFunc("/statistics", h.StatisticsHandler).Methods("GET")

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *APIHandler) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn("Failed to write response", zap.Error(err))
	}
}

func (h *APIHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, errorResponse{Error: message})
}

// respondActionError maps rejected input to 422 and remote failures to 502.
func (h *APIHandler) respondActionError(w http.ResponseWriter, err error) {
	switch {
	case session.IsValidation(err):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case session.IsRemote(err):
		h.respondError(w, http.StatusBadGateway, err.Error())
	default:
		h.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// StateHandler returns the current session snapshot.
func (h *APIHandler) StateHandler(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.controller.Snapshot())
}

type toggleResponse struct {
	Status string `json:"status"`
	Label  string `json:"label"`
}

// ToggleHandler starts a stopped bot or stops a running one.
func (h *APIHandler) ToggleHandler(w http.ResponseWriter, r *http.Request) {
	status, err := h.controller.Toggle(r.Context())
	if err != nil {
		h.respondActionError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toggleResponse{Status: status.String(), Label: status.ToggleLabel()})
}

type analyzeRequest struct {
	Prices string `json:"prices"`
}

type analyzeResponse struct {
	Decision string `json:"decision"`
}

// AnalyzeHandler submits a delimited price history for a decision.
func (h *APIHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision, err := h.controller.Submit(r.Context(), req.Prices)
	if err != nil {
		h.respondActionError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, analyzeResponse{Decision: string(decision)})
}

type configRequest struct {
	Strategy  string `json:"strategy"`
	Threshold string `json:"threshold"`
}

// DraftHandler edits the local configuration draft without contacting the bot.
func (h *APIHandler) DraftHandler(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.controller.SetDraft(req.Strategy, req.Threshold)
	h.respondJSON(w, http.StatusOK, h.controller.Snapshot().Draft)
}

// ConfigHandler sends a configuration to the bot. An empty body sends the current draft.
func (h *APIHandler) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Strategy == "" && req.Threshold == "" {
		draft := h.controller.Snapshot().Draft
		req.Strategy, req.Threshold = draft.Strategy, draft.Threshold
	}

	cfg, err := h.controller.UpdateConfig(r.Context(), req.Strategy, req.Threshold)
	if err != nil {
		h.respondActionError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, cfg)
}

// RefreshHandler re-reads every view from the bot and returns the resulting snapshot.
func (h *APIHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Refresh(r.Context()); err != nil {
		h.log.Warn("Refresh completed with failures", zap.Error(err))
	}
	h.respondJSON(w, http.StatusOK, h.controller.Snapshot())
}

type loginResponse struct {
	Authenticated bool   `json:"authenticated"`
	Principal     string `json:"principal,omitempty"`
}

// LoginHandler retries establishing the identity.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	res := h.controller.Login(r.Context())
	h.respondJSON(w, http.StatusOK, loginResponse{Authenticated: res.Authenticated(), Principal: res.Principal})
}

// JournalHandler returns this session's recorded actions, most recent first.
func (h *APIHandler) JournalHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultJournalLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.journal.Recent(limit)
	if err != nil {
		h.log.Error("Failed to read journal", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	h.respondJSON(w, http.StatusOK, entries)
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	Total    int64            `json:"total"`
	Outcomes map[string]int64 `json:"outcomes"`
}

// StatisticsHandler counts this session's actions by outcome.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := h.journal.CountByOutcome()
	if err != nil {
		h.log.Error("Failed to count journal outcomes", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to calculate statistics")
		return
	}

	resp := StatisticsResponse{Outcomes: counts}
	for _, n := range counts {
		resp.Total += n
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// StreamHandler pushes every published snapshot over a websocket.
func (h *APIHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	snapshots, unsubscribe := h.controller.State().Subscribe()
	defer unsubscribe()

	// The client never sends; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(snap); err != nil {
				h.log.Debug("Websocket client gone", zap.Error(err))
				return
			}
		}
	}
}
