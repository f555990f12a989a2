package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ridewire/voice-engine/pkg/apperrors"
	"github.com/ridewire/voice-engine/pkg/logging"
	"github.com/ridewire/voice-engine/pkg/models"
	"github.com/ridewire/voice-engine/pkg/services"
)

// maxLookupBodyBytes bounds the request body; a lookup is a phone and a name.
const maxLookupBodyBytes = 16 << 10

// CustomerContextHandler serves the customer context lookup to the voice platform.
type CustomerContextHandler struct {
	lookupService services.LookupService
	logger        *zap.Logger
}

// NewCustomerContextHandler creates a new customer context handler.
func NewCustomerContextHandler(lookupService services.LookupService, logger *zap.Logger) *CustomerContextHandler {
	return &CustomerContextHandler{
		lookupService: lookupService,
		logger:        logger,
	}
}

// RegisterRoutes registers the customer context routes on the given mux.
func (h *CustomerContextHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/customer-context", h.Lookup)
}

// Lookup handles POST /api/customer-context.
// Only an unusable phone is a client error; degraded sources still return 200.
func (h *CustomerContextHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req models.LookupRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLookupBodyBytes)).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if strings.TrimSpace(req.Phone) == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_phone", "phone is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	resp, err := h.lookupService.Lookup(r.Context(), req)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnresolvablePhone) {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_phone", "phone number could not be resolved"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}

		h.logger.Error("Customer context lookup failed",
			zap.String("phone", logging.MaskPhone(req.Phone)),
			zap.String("error", logging.SanitizeError(err)))
		if err := ErrorResponse(w, http.StatusInternalServerError, "lookup_failed", "Failed to build customer context"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
