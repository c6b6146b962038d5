package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"occupancy-predictor/models"
	"occupancy-predictor/predictor"
	"occupancy-predictor/transformers"
)

const (
	ServiceName    = "Occupancy Prediction API"
	ServiceVersion = "1.0.0"

	maxBodyBytes = 1 << 16
)

type PredictionService interface {
	Predict(ctx context.Context, roomID string, reading models.SensorReading) (*models.PredictionResult, error)
}

type ModelSource interface {
	Current() (*predictor.Model, error)
	IsLoaded() bool
}

type SummaryReader interface {
	GetSummary(ctx context.Context, roomID string) (*models.RoomSummary, error)
}

type PredictionHandler struct {
	service   PredictionService
	models    ModelSource
	summaries SummaryReader
}

func NewPredictionHandler(service PredictionService, source ModelSource, summaries SummaryReader) *PredictionHandler {
	return &PredictionHandler{
		service:   service,
		models:    source,
		summaries: summaries,
	}
}

func (h *PredictionHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"message": ServiceName,
		"version": ServiceVersion,
		"endpoints": map[string]string{
			"predict":      "/predict",
			"health":       "/health",
			"model_info":   "/model/info",
			"room_summary": "/rooms/{room_id}/summary",
			"metrics":      "/metrics",
		},
	})
}

func (h *PredictionHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, err := models.DecodePredictionRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			predictionErrorsTotal.WithLabelValues("validation").Inc()
			jsonErr(w, http.StatusUnprocessableEntity, vErr.Error())
			return
		}
		predictionErrorsTotal.WithLabelValues("malformed").Inc()
		jsonErr(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	result, err := h.service.Predict(r.Context(), req.Room(), req.Reading())
	if err != nil {
		h.writePredictError(w, r, err)
		return
	}

	result.HandlingTimeMs = float64(time.Since(start).Microseconds()) / 1000.0

	predictionsTotal.WithLabelValues(strconv.Itoa(result.Prediction)).Inc()
	slog.Info("prediction made",
		"request_id", RequestID(r.Context()),
		"room_id", result.RoomID,
		"label", result.Label,
		"prediction", result.Prediction,
		"probability", result.Probability,
	)
	jsonResp(w, http.StatusOK, result)
}

func (h *PredictionHandler) writePredictError(w http.ResponseWriter, r *http.Request, err error) {
	var inErr *transformers.InputError
	switch {
	case errors.As(err, &inErr):
		predictionErrorsTotal.WithLabelValues("input").Inc()
		jsonErr(w, http.StatusUnprocessableEntity, inErr.Error())
	case errors.Is(err, predictor.ErrModelNotLoaded):
		predictionErrorsTotal.WithLabelValues("model_not_loaded").Inc()
		jsonErr(w, http.StatusServiceUnavailable, "Model not loaded")
	default:
		predictionErrorsTotal.WithLabelValues("inference").Inc()
		slog.Error("prediction error", "request_id", RequestID(r.Context()), "err", err)
		jsonErr(w, http.StatusInternalServerError, "Internal server error during prediction")
	}
}

func (h *PredictionHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := h.models.IsLoaded()
	status := "healthy"
	if !loaded {
		status = "unhealthy"
	}
	jsonResp(w, http.StatusOK, models.HealthResponse{
		Status:      status,
		ModelLoaded: loaded,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *PredictionHandler) HandleModelInfo(w http.ResponseWriter, r *http.Request) {
	m, err := h.models.Current()
	if err != nil {
		jsonErr(w, http.StatusServiceUnavailable, "Model not loaded")
		return
	}
	jsonResp(w, http.StatusOK, m.Info())
}

func (h *PredictionHandler) HandleRoomSummary(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]

	summary, err := h.summaries.GetSummary(r.Context(), roomID)
	if err != nil {
		slog.Error("failed to get room summary", "room_id", roomID, "err", err)
		jsonErr(w, http.StatusInternalServerError, "Failed to get room summary")
		return
	}
	if summary == nil {
		jsonErr(w, http.StatusNotFound, "No summary for room "+roomID)
		return
	}
	jsonResp(w, http.StatusOK, summary)
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, detail string) {
	jsonResp(w, code, models.ErrorResponse{Detail: detail})
}
