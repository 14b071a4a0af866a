package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/neha-iitjdh/ChurnShield-AI/internal/alerts"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/batch"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/classifier"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/domain"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/encoder"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/model"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/repository"
)

// maxUploadSize caps batch CSV uploads at 16MB.
const maxUploadSize = 16 << 20

// Dependencies holds the wired components the handlers depend on.
// Model may be nil when the artifact failed to load; prediction
// endpoints then report the model as unavailable.
type Dependencies struct {
	Store      domain.HistoryStore
	Cache      domain.Cache
	Bus        domain.EventBus
	Encoder    *encoder.Encoder
	Classifier *classifier.Classifier
	Batch      *batch.Processor
	Model      *model.Ensemble
	Alerts     *alerts.Engine
	Version    string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	deps Dependencies
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps}
}

// PredictRequest is the request body for POST /predict.
type PredictRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
	domain.CustomerAttributes
}

// PredictResponse is the response for POST /predict.
type PredictResponse struct {
	ID         int64  `json:"id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	domain.PredictionResult
}

// Root returns basic service information.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "ChurnShield AI",
		"version": h.deps.Version,
		"endpoints": []string{
			"GET /health",
			"GET /ready",
			"GET /metrics",
			"POST /predict",
			"POST /predict/batch",
			"GET /history",
			"GET /history/stats",
			"DELETE /history/{id}",
			"DELETE /history",
		},
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	modelLoaded := h.deps.Model != nil

	if !modelLoaded {
		status = "degraded"
	}

	// Check repository health
	if h.deps.Store != nil {
		if err := h.deps.Store.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.deps.Cache != nil {
		if err := h.deps.Cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	resp := map[string]any{
		"status":       status,
		"version":      h.deps.Version,
		"model_loaded": modelLoaded,
	}
	if modelLoaded {
		resp["model_accuracy"] = h.deps.Model.Metrics().Accuracy
	}

	writeJSON(w, http.StatusOK, resp)
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// Metrics returns the training metrics embedded in the scoring artifact.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.deps.Model == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "model not loaded",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"model_version":      h.deps.Model.Version(),
		"metrics":            h.deps.Model.Metrics(),
		"feature_importance": h.deps.Model.FeatureImportance(),
	})
}

// Predict handles POST /predict requests.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	vector, err := h.deps.Encoder.Encode(&req.CustomerAttributes)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.deps.Classifier.Classify(ctx, vector)
	if err != nil {
		h.writeError(w, err)
		return
	}

	record := &domain.PredictionRecord{
		CustomerID:     req.CustomerID,
		CustomerData:   req.CustomerAttributes,
		Probability:    result.Probability,
		RiskLevel:      result.RiskLevel,
		WillChurn:      result.WillChurn,
		PredictionType: domain.PredictionTypeSingle,
	}

	if h.deps.Store != nil {
		if _, err := h.deps.Store.Insert(ctx, []*domain.PredictionRecord{record}); err != nil {
			slog.Error("failed to persist prediction",
				"customer_id", req.CustomerID,
				"error", err,
			)
			h.writeError(w, err)
			return
		}
	}

	h.publishPrediction(r, record, result)

	writeJSON(w, http.StatusOK, PredictResponse{
		ID:               record.ID,
		CustomerID:       req.CustomerID,
		PredictionResult: *result,
	})
}

// publishPrediction emits the recorded event and any triggered alerts.
func (h *Handler) publishPrediction(r *http.Request, record *domain.PredictionRecord, result *domain.PredictionResult) {
	ctx := r.Context()

	if h.deps.Bus != nil {
		payload, _ := json.Marshal(record)
		if err := h.deps.Bus.Publish(ctx, domain.TopicPredictionRecorded, payload); err != nil {
			slog.Error("failed to publish prediction", "error", err)
		}
	}

	if h.deps.Alerts == nil || h.deps.Alerts.RulesCount() == 0 {
		return
	}

	triggered, err := h.deps.Alerts.EvaluateAll(ctx, &alerts.EvaluateInput{
		CustomerID:     record.CustomerID,
		PredictionID:   record.ID,
		Attributes:     &record.CustomerData,
		Result:         result,
		PredictionType: record.PredictionType,
	})
	if err != nil {
		slog.Error("alert evaluation failed", "error", err)
		return
	}

	if h.deps.Bus == nil {
		return
	}
	for _, alert := range triggered {
		payload, _ := json.Marshal(alert)
		if err := h.deps.Bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert", "rule_id", alert.RuleID, "error", err)
		}
	}
}

// PredictBatch handles POST /predict/batch requests. Accepts either a
// multipart upload with a "file" part or a raw CSV body.
func (h *Handler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := http.MaxBytesReader(w, r.Body, maxUploadSize)
	defer body.Close()

	var rows []batch.Row
	var err error

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid multipart form",
			})
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "file part is required",
			})
			return
		}
		defer file.Close()
		rows, err = batch.ParseCSV(file)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
	} else {
		rows, err = batch.ParseCSV(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
	}

	summary, err := h.deps.Batch.Process(ctx, rows)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.deps.Bus != nil {
		payload, _ := json.Marshal(summary)
		if err := h.deps.Bus.Publish(ctx, domain.TopicBatchCompleted, payload); err != nil {
			slog.Error("failed to publish batch summary", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, summary)
}

// ListHistory handles GET /history requests.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be an integer",
			})
			return
		}
		limit = parsed
	}

	records, err := h.deps.Store.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"predictions": records,
		"count":       len(records),
	})
}

// HistoryStats handles GET /history/stats requests.
func (h *Handler) HistoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Store.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// DeletePrediction handles DELETE /history/{id} requests.
func (h *Handler) DeletePrediction(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "prediction id must be an integer",
		})
		return
	}

	if err := h.deps.Store.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	slog.Info("prediction deleted", "id", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "prediction deleted",
		"id":      id,
	})
}

// DeleteAllPredictions handles DELETE /history requests.
func (h *Handler) DeleteAllPredictions(w http.ResponseWriter, r *http.Request) {
	count, err := h.deps.Store.DeleteAll(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	slog.Info("history cleared", "deleted", count)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "history cleared",
		"deleted": count,
	})
}

// ListAlertRules returns all loaded alert rules.
func (h *Handler) ListAlertRules(w http.ResponseWriter, r *http.Request) {
	if h.deps.Alerts == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "alert engine not available",
		})
		return
	}

	rules := h.deps.Alerts.GetLoadedRules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// CreateAlertRule validates and loads a new alert rule into the engine.
type CreateAlertRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Severity    string `json:"severity"`
}

// CreateAlertRule handles POST /alerts/rules requests.
func (h *Handler) CreateAlertRule(w http.ResponseWriter, r *http.Request) {
	if h.deps.Alerts == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "alert engine not available",
		})
		return
	}

	var req CreateAlertRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	severity := req.Severity
	if severity == "" {
		severity = "warning"
	}

	rule := &domain.AlertRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Severity:    severity,
		Enabled:     true,
	}

	if err := h.deps.Alerts.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	slog.Info("alert rule loaded", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, rule)
}

// writeError maps pipeline errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var invalid *encoder.InvalidAttributeError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": invalid.Error(),
			"field": invalid.Field,
		})
	case errors.Is(err, model.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "model not loaded",
		})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "prediction not found",
		})
	case errors.Is(err, repository.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
