package predictor

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"occupancy-predictor/transformers"
)

// Default values for the pipeline manifest.
const (
	DefaultModelType = "LightGBM Classifier Pipeline"
	DefaultThreshold = 0.5
)

// DefaultPreprocessingSteps describes the reference pipeline.
var DefaultPreprocessingSteps = []string{
	"CO2 BoxCox Transformation",
	"Light Discretization (KBins)",
	"Feature Engineering (time features, deltas, rates)",
	"SMOTE Oversampling",
}

// Manifest describes a fitted pipeline artifact: the LightGBM model file plus
// the transform parameters and column order it was trained with.
type Manifest struct {
	// ModelType is reported by /model/info.
	ModelType string `yaml:"model_type"`

	// ModelFile is the LightGBM text model, relative to the manifest's directory
	// unless absolute.
	ModelFile string `yaml:"model_file"`

	// Threshold is the P(occupied) at or above which the label is 1.
	Threshold float64 `yaml:"threshold"`

	CO2BoxCoxLambda float64   `yaml:"co2_boxcox_lambda"`
	LightBinEdges   []float64 `yaml:"light_bin_edges"`

	// FeatureNames is the exact column order the model was fit on.
	FeatureNames []string `yaml:"feature_names"`

	PreprocessingSteps []string `yaml:"preprocessing_steps"`
}

// LoadManifest reads and validates the manifest at path. ModelFile is
// returned resolved against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %q: %w", path, err)
	}

	m := defaultManifest()
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("manifest: parse yaml: %w", err)
	}

	if m.ModelFile != "" && !filepath.IsAbs(m.ModelFile) {
		m.ModelFile = filepath.Join(filepath.Dir(path), m.ModelFile)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return m, nil
}

func defaultManifest() *Manifest {
	return &Manifest{
		ModelType:          DefaultModelType,
		Threshold:          DefaultThreshold,
		FeatureNames:       append([]string(nil), transformers.DefaultFeatureOrder...),
		PreprocessingSteps: append([]string(nil), DefaultPreprocessingSteps...),
	}
}

func (m *Manifest) validate() error {
	if m.ModelFile == "" {
		return fmt.Errorf("model_file is required")
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		return fmt.Errorf("threshold %v is out of range (0, 1)", m.Threshold)
	}
	if len(m.LightBinEdges) < 2 {
		return fmt.Errorf("light_bin_edges needs at least 2 edges, got %d", len(m.LightBinEdges))
	}
	for i := 1; i < len(m.LightBinEdges); i++ {
		if m.LightBinEdges[i] <= m.LightBinEdges[i-1] {
			return fmt.Errorf("light_bin_edges must be strictly increasing (index %d)", i)
		}
	}
	if err := transformers.ValidateOrder(m.FeatureNames); err != nil {
		return fmt.Errorf("feature_names: %w", err)
	}
	return nil
}

// Params returns the fitted transform parameters.
func (m *Manifest) Params() transformers.Params {
	return transformers.Params{
		CO2Lambda:     m.CO2BoxCoxLambda,
		LightBinEdges: m.LightBinEdges,
	}
}
