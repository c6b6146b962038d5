// Package inference runs one sensor reading through the served pipeline:
// transforms, lag features against the room's previous reading, the
// classifier, and hand-off to analytics.
package inference

import (
	"context"
	"fmt"
	"time"

	"occupancy-predictor/analytics"
	"occupancy-predictor/models"
	"occupancy-predictor/predictor"
	"occupancy-predictor/transformers"
)

// Recorder receives every served prediction.
type Recorder interface {
	Record(obs analytics.Observation)
}

type Service struct {
	predictor *predictor.Predictor
	history   *transformers.History
	recorder  Recorder
	now       func() time.Time
}

// NewService wires the pipeline. recorder may be nil.
func NewService(p *predictor.Predictor, history *transformers.History, recorder Recorder) *Service {
	return &Service{
		predictor: p,
		history:   history,
		recorder:  recorder,
		now:       time.Now,
	}
}

// Predict returns predictor.ErrModelNotLoaded, a *transformers.InputError for
// readings the fitted transforms reject, or a wrapped inference error.
func (s *Service) Predict(ctx context.Context, roomID string, reading models.SensorReading) (*models.PredictionResult, error) {
	start := s.now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// One snapshot for params and classifier, even across a hot reload.
	model, err := s.predictor.Current()
	if err != nil {
		return nil, err
	}

	cur, err := model.Manifest.Params().Apply(reading)
	if err != nil {
		return nil, err
	}
	prev := s.history.Swap(roomID, cur)

	vec, err := transformers.Derive(cur, prev).Vector(model.Manifest.FeatureNames)
	if err != nil {
		return nil, fmt.Errorf("build feature vector: %w", err)
	}

	label, probability, err := model.Predict(vec)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}

	if s.recorder != nil {
		s.recorder.Record(analytics.Observation{
			RoomID:      roomID,
			Reading:     reading,
			Prediction:  label,
			Probability: probability,
		})
	}

	end := s.now()
	return &models.PredictionResult{
		Prediction:     label,
		Probability:    probability,
		Timestamp:      end.UTC().Format(time.RFC3339),
		Label:          models.LabelFor(label),
		RoomID:         roomID,
		HandlingTimeMs: float64(end.Sub(start).Microseconds()) / 1000.0,
	}, nil
}

// ResetHistory drops all retained readings.
func (s *Service) ResetHistory() {
	s.history.Reset()
}
