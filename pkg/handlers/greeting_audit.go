package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ridewire/voice-engine/pkg/models"
	"github.com/ridewire/voice-engine/pkg/repositories"
)

// GreetingAuditListResponse for GET /api/greeting-audit
type GreetingAuditListResponse struct {
	Events []*models.GreetingAuditEvent `json:"events"`
	Total  int                          `json:"total"`
}

// GreetingAuditHandler exposes recent greeting decisions for support staff.
type GreetingAuditHandler struct {
	repo   repositories.GreetingAuditRepository
	logger *zap.Logger
}

// NewGreetingAuditHandler creates a new greeting audit handler.
func NewGreetingAuditHandler(repo repositories.GreetingAuditRepository, logger *zap.Logger) *GreetingAuditHandler {
	return &GreetingAuditHandler{
		repo:   repo,
		logger: logger,
	}
}

// RegisterRoutes registers the greeting audit routes on the given mux.
func (h *GreetingAuditHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/greeting-audit", h.List)
}

// List handles GET /api/greeting-audit?scenario=&since=&limit=
func (h *GreetingAuditHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, errMsg := parseAuditFilters(r)
	if errMsg != "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_filter", errMsg); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	events, err := h.repo.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to list greeting audit", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_greeting_audit_failed", "Failed to list greeting decisions"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if events == nil {
		events = []*models.GreetingAuditEvent{}
	}

	response := ApiResponse{
		Success: true,
		Data: GreetingAuditListResponse{
			Events: events,
			Total:  len(events),
		},
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func parseAuditFilters(r *http.Request) (models.GreetingAuditFilters, string) {
	q := r.URL.Query()
	var filters models.GreetingAuditFilters

	if s := q.Get("scenario"); s != "" {
		scenario := models.GreetingScenario(s)
		valid := false
		for _, known := range models.AllScenarios {
			if known == scenario {
				valid = true
				break
			}
		}
		if !valid {
			return filters, "unknown scenario " + strconv.Quote(s)
		}
		filters.Scenario = scenario
	}

	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filters, "since must be an RFC3339 timestamp"
		}
		filters.Since = &since
	}

	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			return filters, "limit must be a positive integer"
		}
		filters.Limit = limit
	}
	return filters, ""
}
