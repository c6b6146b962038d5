package predictor

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/dmitryikh/leaves"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"occupancy-predictor/models"
)

var (
	modelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_loaded",
			Help: "1 if a model pipeline is loaded, 0 otherwise",
		},
	)

	modelLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_loads_total",
			Help: "Total number of model pipeline load attempts",
		},
		[]string{"result"},
	)
)

// ErrModelNotLoaded is returned when no pipeline has been loaded yet.
var ErrModelNotLoaded = errors.New("model is not loaded")

// Classifier is the inference surface of a fitted gradient-boosted ensemble.
// *leaves.Ensemble satisfies it.
type Classifier interface {
	PredictSingle(fvals []float64, nEstimators int) float64
	NFeatures() int
}

// Model is one loaded, immutable pipeline.
type Model struct {
	Manifest *Manifest
	LoadedAt time.Time

	classifier Classifier
}

// NewModel pairs a manifest with its classifier, enforcing that the manifest's
// column order matches the classifier's feature count.
func NewModel(m *Manifest, c Classifier) (*Model, error) {
	if n := c.NFeatures(); n != len(m.FeatureNames) {
		return nil, fmt.Errorf("model expects %d features, manifest lists %d", n, len(m.FeatureNames))
	}
	return &Model{Manifest: m, LoadedAt: time.Now().UTC(), classifier: c}, nil
}

// Predict returns the label and the probability of that label.
func (m *Model) Predict(features []float64) (int, float64, error) {
	if len(features) != len(m.Manifest.FeatureNames) {
		return 0, 0, fmt.Errorf("feature vector has %d columns, want %d", len(features), len(m.Manifest.FeatureNames))
	}

	p := m.classifier.PredictSingle(features, 0)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, 0, fmt.Errorf("classifier returned non-finite score %v", p)
	}
	p = math.Min(1, math.Max(0, p))

	if p >= m.Manifest.Threshold {
		return 1, p, nil
	}
	return 0, 1 - p, nil
}

func (m *Model) Info() models.ModelInfo {
	return models.ModelInfo{
		ModelType:          m.Manifest.ModelType,
		ModelLoaded:        true,
		PreprocessingSteps: m.Manifest.PreprocessingSteps,
		ModelPath:          m.Manifest.ModelFile,
		FeatureNames:       m.Manifest.FeatureNames,
		NFeatures:          len(m.Manifest.FeatureNames),
		Threshold:          m.Manifest.Threshold,
		LoadedAt:           m.LoadedAt.Format(time.RFC3339),
	}
}

// Predictor holds the current model. Readers take a snapshot with Current;
// Load swaps in a new model atomically.
type Predictor struct {
	manifestPath string
	current      atomic.Pointer[Model]

	loadClassifier func(path string) (Classifier, error)
}

func New(manifestPath string) *Predictor {
	return &Predictor{
		manifestPath:   manifestPath,
		loadClassifier: loadLightGBM,
	}
}

func loadLightGBM(path string) (Classifier, error) {
	ensemble, err := leaves.LGEnsembleFromFile(path, true)
	if err != nil {
		return nil, err
	}
	return ensemble, nil
}

// Load reads the manifest and the model file and makes them current. On
// failure the previously loaded model, if any, stays in place.
func (p *Predictor) Load() error {
	m, err := p.load()
	if err != nil {
		modelLoadsTotal.WithLabelValues("error").Inc()
		return err
	}
	p.Set(m)
	modelLoadsTotal.WithLabelValues("success").Inc()
	slog.Info("model pipeline loaded",
		"manifest", p.manifestPath,
		"model_file", m.Manifest.ModelFile,
		"features", len(m.Manifest.FeatureNames),
		"threshold", m.Manifest.Threshold,
	)
	return nil
}

func (p *Predictor) load() (*Model, error) {
	manifest, err := LoadManifest(p.manifestPath)
	if err != nil {
		return nil, err
	}
	c, err := p.loadClassifier(manifest.ModelFile)
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", manifest.ModelFile, err)
	}
	return NewModel(manifest, c)
}

// Set makes m the current model.
func (p *Predictor) Set(m *Model) {
	p.current.Store(m)
	modelLoaded.Set(1)
}

// Current returns the loaded model or ErrModelNotLoaded.
func (p *Predictor) Current() (*Model, error) {
	m := p.current.Load()
	if m == nil {
		return nil, ErrModelNotLoaded
	}
	return m, nil
}

func (p *Predictor) IsLoaded() bool {
	return p.current.Load() != nil
}

func (p *Predictor) ManifestPath() string {
	return p.manifestPath
}
