package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"cropyield-platform/internal/models"
	"cropyield-platform/internal/registry"
	"cropyield-platform/internal/repository"
	"cropyield-platform/internal/services"
	"cropyield-platform/pkg/logging"
	"cropyield-platform/pkg/metrics"
)

// PredictionHandler handles prediction API endpoints
type PredictionHandler struct {
	orchestrator *services.PredictionOrchestrator
	catalog      repository.VarietyCatalog
	registry     *registry.ModelRegistry
	guard        *registry.CompatibilityGuard
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
}

// NewPredictionHandler creates a new prediction handler
func NewPredictionHandler(
	orchestrator *services.PredictionOrchestrator,
	catalog repository.VarietyCatalog,
	modelRegistry *registry.ModelRegistry,
	guard *registry.CompatibilityGuard,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *PredictionHandler {
	return &PredictionHandler{
		orchestrator: orchestrator,
		catalog:      catalog,
		registry:     modelRegistry,
		guard:        guard,
		logger:       logger,
		metrics:      metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// Predict handles POST /api/predict
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/predict").Observe(duration.Seconds())
	}()

	var req models.PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, "invalid JSON request body", http.StatusBadRequest, nil)
		return
	}

	if strings.TrimSpace(req.CropType) == "" {
		h.sendError(w, r, "crop_type is required", http.StatusBadRequest, nil)
		return
	}
	if strings.TrimSpace(req.Location) == "" {
		h.sendError(w, r, "location is required", http.StatusBadRequest, nil)
		return
	}
	if req.AreaHectares < 0 {
		h.sendError(w, r, "area_hectares must be non-negative", http.StatusBadRequest, nil)
		return
	}

	response, err := h.orchestrator.Predict(ctx, &req)
	if err != nil {
		h.handlePredictionError(w, r, &req, err)
		return
	}

	h.metrics.RecordAPIRequest("/api/predict", "POST", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// handlePredictionError maps domain errors to HTTP responses. Selection
// exhaustion is a server-side data problem, not a client mistake.
func (h *PredictionHandler) handlePredictionError(w http.ResponseWriter, r *http.Request, req *models.PredictionRequest, err error) {
	ctx := r.Context()

	var invalidVariety *models.InvalidVarietyError
	if errors.As(err, &invalidVariety) {
		h.metrics.RecordAPIError("invalid_variety", "/api/predict")
		h.sendError(w, r, invalidVariety.Error(), http.StatusBadRequest, nil)
		return
	}

	var noVarieties *models.NoVarietiesAvailableError
	if errors.As(err, &noVarieties) {
		h.logger.Error(ctx, "[API_PREDICT_NO_VARIETIES] Selection exhausted every tier", logging.Fields{
			"crop_type": req.CropType,
			"location":  req.Location,
			"region":    noVarieties.Region,
			"attempted": noVarieties.Attempted,
		}, err)
		h.metrics.RecordAPIError("no_varieties_available", "/api/predict")
		h.sendError(w, r, noVarieties.Error(), http.StatusInternalServerError, map[string]interface{}{
			"crop_type":           noVarieties.CropType,
			"region":              noVarieties.Region,
			"attempted_varieties": noVarieties.Attempted,
		})
		return
	}

	var dbErr *models.DatabaseError
	if errors.As(err, &dbErr) {
		h.logger.Error(ctx, "[API_PREDICT_DB_ERROR] Catalog unavailable", logging.Fields{
			"crop_type": req.CropType,
			"location":  req.Location,
		}, err)
		h.metrics.RecordAPIError("database_error", "/api/predict")
		h.sendError(w, r, "variety catalog temporarily unavailable", http.StatusServiceUnavailable, nil)
		return
	}

	if errors.Is(err, registry.ErrNoModels) {
		h.metrics.RecordAPIError("no_models", "/api/predict")
		h.sendError(w, r, "no prediction models available", http.StatusServiceUnavailable, nil)
		return
	}

	h.logger.Error(ctx, "[API_PREDICT_ERROR] Prediction failed", logging.Fields{
		"crop_type": req.CropType,
		"location":  req.Location,
	}, err)
	h.metrics.RecordAPIError("internal_error", "/api/predict")
	h.sendError(w, r, "failed to compute prediction", http.StatusInternalServerError, nil)
}

// ListVarieties handles GET /api/varieties
func (h *PredictionHandler) ListVarieties(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/varieties").Observe(duration.Seconds())
	}()

	// Parse query parameters
	cropType := r.URL.Query().Get("crop_type")
	regionName := r.URL.Query().Get("region")
	pageStr := r.URL.Query().Get("page")
	limitStr := r.URL.Query().Get("limit")

	// Default pagination
	page := 1
	limit := 100

	if pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	offset := (page - 1) * limit

	filter := repository.VarietyFilter{
		Limit:  limit,
		Offset: offset,
	}

	if cropType != "" {
		filter.CropType = &cropType
	}

	if regionName != "" {
		filter.Region = &regionName
	}

	records, total, err := h.catalog.ListVarieties(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_LIST_VARIETIES_ERROR] Failed to list varieties", logging.Fields{
			"crop_type": cropType,
			"region":    regionName,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/varieties")
		h.sendError(w, r, "failed to retrieve varieties", http.StatusInternalServerError, nil)
		return
	}

	totalPages := (total + limit - 1) / limit

	response := PaginatedResponse{
		Data:       records,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}

	h.metrics.RecordAPIRequest("/api/varieties", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *PredictionHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report := h.registry.Report()
	byLocation := make(map[string]int)
	for _, location := range h.registry.Locations() {
		byLocation[location] = len(h.registry.Get(location))
	}

	modelStatus := map[string]interface{}{
		"total_loaded":  0,
		"fallback_mode": false,
		"locations":     h.registry.Locations(),
		"by_location":   byLocation,
	}
	if report != nil {
		modelStatus["total_loaded"] = report.SuccessfullyLoaded
		modelStatus["fallback_mode"] = report.FallbackMode
		modelStatus["failed"] = len(report.Failed)
	}

	dbStatus := "healthy"
	overall := "healthy"
	if err := h.catalog.HealthCheck(ctx); err != nil {
		dbStatus = "unhealthy"
		overall = "degraded"
		h.logger.Warn(ctx, "[HEALTH_DB_UNHEALTHY] Database health check failed", logging.Fields{
			"error": err.Error(),
		})
	}

	status := map[string]interface{}{
		"status":      overall,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"database":    dbStatus,
		"models":      modelStatus,
		"environment": h.guard.LibVersions(),
	}

	code := http.StatusOK
	if overall != "healthy" {
		code = http.StatusServiceUnavailable
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

// sendJSON sends a JSON response
func (h *PredictionHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *PredictionHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int, details interface{}) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
		Details: details,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all prediction API routes
func (h *PredictionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/predict", h.Predict).Methods("POST")
	router.HandleFunc("/api/varieties", h.ListVarieties).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
