package inference

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"occupancy-predictor/analytics"
	"occupancy-predictor/models"
	"occupancy-predictor/predictor"
	"occupancy-predictor/transformers"
)

type recordingClassifier struct {
	mu    sync.Mutex
	score float64
	last  []float64
}

func (c *recordingClassifier) PredictSingle(fvals []float64, _ int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = append([]float64(nil), fvals...)
	return c.score
}

func (c *recordingClassifier) NFeatures() int { return len(transformers.DefaultFeatureOrder) }

type recorder struct {
	obs []analytics.Observation
}

func (r *recorder) Record(o analytics.Observation) { r.obs = append(r.obs, o) }

func newService(t *testing.T, score float64) (*Service, *recordingClassifier, *recorder) {
	t.Helper()
	manifest := &predictor.Manifest{
		ModelType:       predictor.DefaultModelType,
		ModelFile:       "/models/occupancy_model.txt",
		Threshold:       0.5,
		CO2BoxCoxLambda: 0,
		LightBinEdges:   []float64{0, 100, 300, 500, 1700},
		FeatureNames:    transformers.DefaultFeatureOrder,
	}
	clf := &recordingClassifier{score: score}
	m, err := predictor.NewModel(manifest, clf)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	p := predictor.New("")
	p.Set(m)

	rec := &recorder{}
	return NewService(p, transformers.NewHistory(), rec), clf, rec
}

func exampleReading() models.SensorReading {
	return models.SensorReading{
		Timestamp:     time.Date(2015, 2, 4, 17, 51, 0, 0, time.UTC),
		Temperature:   23.18,
		Humidity:      27.272,
		Light:         426.0,
		CO2:           721.25,
		HumidityRatio: 0.00479,
	}
}

func col(name string) int {
	for i, n := range transformers.DefaultFeatureOrder {
		if n == name {
			return i
		}
	}
	return -1
}

func TestPredict_ExampleReading(t *testing.T) {
	svc, clf, rec := newService(t, 0.95)

	res, err := svc.Predict(context.Background(), "default", exampleReading())
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Prediction != 1 || res.Probability != 0.95 {
		t.Errorf("result: got %d / %v, want 1 / 0.95", res.Prediction, res.Probability)
	}
	if res.Label != models.LabelOccupied {
		t.Errorf("label: got %q", res.Label)
	}
	if _, err := time.Parse(time.RFC3339, res.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", res.Timestamp, err)
	}

	if got := clf.last[col(transformers.FeatCO2)]; math.Abs(got-math.Log(721.25)) > 1e-9 {
		t.Errorf("CO2 column: got %v, want ln(721.25)", got)
	}
	if got := clf.last[col(transformers.FeatLight)]; got != 2 {
		t.Errorf("Light column: got %v, want bin 2", got)
	}
	if got := clf.last[col(transformers.FeatHour)]; got != 17 {
		t.Errorf("hour column: got %v, want 17", got)
	}
	if got := clf.last[col(transformers.FeatCO2Delta)]; got != 0 {
		t.Errorf("first reading co2_delta: got %v, want 0", got)
	}

	if len(rec.obs) != 1 || rec.obs[0].RoomID != "default" || rec.obs[0].Prediction != 1 {
		t.Errorf("recorded observations: got %+v", rec.obs)
	}
}

func TestPredict_LagFeaturesUsePreviousReading(t *testing.T) {
	svc, clf, _ := newService(t, 0.3)
	ctx := context.Background()

	first := exampleReading()
	if _, err := svc.Predict(ctx, "lab", first); err != nil {
		t.Fatal(err)
	}

	second := first
	second.Timestamp = first.Timestamp.Add(2 * time.Minute)
	second.Temperature = 23.68
	res, err := svc.Predict(ctx, "lab", second)
	if err != nil {
		t.Fatal(err)
	}
	if res.Prediction != 0 || math.Abs(res.Probability-0.7) > 1e-9 {
		t.Errorf("result: got %d / %v, want 0 / 0.7", res.Prediction, res.Probability)
	}
	if got := clf.last[col(transformers.FeatTempDelta)]; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("temp_delta: got %v, want 0.5", got)
	}
	if got := clf.last[col(transformers.FeatTempRate)]; math.Abs(got-0.25) > 1e-9 {
		t.Errorf("temp_rate: got %v, want 0.25", got)
	}

	// A different room starts without history.
	if _, err := svc.Predict(ctx, "office", second); err != nil {
		t.Fatal(err)
	}
	if got := clf.last[col(transformers.FeatTempDelta)]; got != 0 {
		t.Errorf("office temp_delta: got %v, want 0", got)
	}

	svc.ResetHistory()
	if _, err := svc.Predict(ctx, "lab", second); err != nil {
		t.Fatal(err)
	}
	if got := clf.last[col(transformers.FeatTempDelta)]; got != 0 {
		t.Errorf("temp_delta after reset: got %v, want 0", got)
	}
}

func TestPredict_ModelNotLoaded(t *testing.T) {
	svc := NewService(predictor.New(""), transformers.NewHistory(), nil)
	_, err := svc.Predict(context.Background(), "default", exampleReading())
	if !errors.Is(err, predictor.ErrModelNotLoaded) {
		t.Errorf("got %v, want ErrModelNotLoaded", err)
	}
}

func TestPredict_InputError(t *testing.T) {
	svc, _, rec := newService(t, 0.9)
	r := exampleReading()
	r.CO2 = 0
	_, err := svc.Predict(context.Background(), "default", r)

	var inErr *transformers.InputError
	if !errors.As(err, &inErr) {
		t.Fatalf("got %v, want *transformers.InputError", err)
	}
	if len(rec.obs) != 0 {
		t.Errorf("recorded %d observations for rejected input", len(rec.obs))
	}
}

func TestPredict_CancelledContext(t *testing.T) {
	svc, _, _ := newService(t, 0.9)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Predict(ctx, "default", exampleReading()); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
