package models

import "time"

const (
	LabelOccupied   = "Person present"
	LabelUnoccupied = "Person not present"
)

// PredictionResult is created per request and never persisted.
type PredictionResult struct {
	Prediction     int     `json:"prediction"`
	Probability    float64 `json:"probability"`
	Timestamp      string  `json:"timestamp"`
	Label          string  `json:"label"`
	RoomID         string  `json:"room_id"`
	HandlingTimeMs float64 `json:"handling_time_ms"`
}

// LabelFor maps a binary prediction to its human-readable label.
func LabelFor(prediction int) string {
	if prediction == 1 {
		return LabelOccupied
	}
	return LabelUnoccupied
}

type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Timestamp   string `json:"timestamp"`
}

type ModelInfo struct {
	ModelType          string   `json:"model_type"`
	ModelLoaded        bool     `json:"model_loaded"`
	PreprocessingSteps []string `json:"preprocessing_steps"`
	ModelPath          string   `json:"model_path"`
	FeatureNames       []string `json:"feature_names"`
	NFeatures          int      `json:"n_features"`
	Threshold          float64  `json:"threshold"`
	LoadedAt           string   `json:"loaded_at"`
}

// RoomSummary is the rolling per-room view kept by the analytics tracker.
type RoomSummary struct {
	RoomID          string    `json:"room_id"`
	LastPrediction  int       `json:"last_prediction"`
	LastProbability float64   `json:"last_probability"`
	OccupancyRate   float64   `json:"occupancy_rate"`
	Samples         int       `json:"samples"`
	CO2ZScore       float64   `json:"co2_z_score"`
	InputDrift      bool      `json:"input_drift"`
	ReadingTime     time.Time `json:"reading_time"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ErrorResponse mirrors the {"detail": ...} body clients of the service expect.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
