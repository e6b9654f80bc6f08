package models

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ModelArtifact is the on-disk JSON manifest for a persisted regression
// model. Artifacts are written by the training pipeline; this service only
// reads them.
type ModelArtifact struct {
	LocationKey   string                  `json:"location_key"`
	AlgorithmName string                  `json:"algorithm_name"`
	Model         *LinearModel            `json:"model"`
	Scaler        *StandardScaler         `json:"scaler"`
	FeatureList   []string                `json:"feature_list"`
	Metrics       *ModelMetrics           `json:"metrics"`
	CreatedAt     time.Time               `json:"created_at"`
	Environment   *EnvironmentFingerprint `json:"environment"`
}

// LinearModel holds the fitted coefficients of a regression model.
type LinearModel struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// StandardScaler standardizes a feature vector before inference.
type StandardScaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// ModelMetrics holds the evaluation metrics recorded at training time.
type ModelMetrics struct {
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// EnvironmentFingerprint records the library versions the artifact was
// written with. The compatibility guard and the loader gate on these.
type EnvironmentFingerprint struct {
	MatrixLibVersion     string `json:"matrix_lib_version"`
	RegressionLibVersion string `json:"regression_lib_version"`
	Hostname             string `json:"hostname,omitempty"`
}

// ModelEntry is a loaded, validated model owned by the registry. Entries
// are immutable after the startup load pass and shared read-only across
// requests.
type ModelEntry struct {
	LocationKey   string                  `json:"location_key"`
	AlgorithmName string                  `json:"algorithm_name"`
	Model         *LinearModel            `json:"-"`
	Scaler        *StandardScaler         `json:"-"`
	FeatureList   []string                `json:"feature_list"`
	Metrics       *ModelMetrics           `json:"metrics"`
	CreatedAt     time.Time               `json:"created_at"`
	Environment   *EnvironmentFingerprint `json:"environment,omitempty"`
	Fallback      bool                    `json:"fallback"`
}

// Predict runs the regression over a raw feature vector: standardize by the
// scaler, then dot with the coefficients. The vector must line up with
// FeatureList.
func (e *ModelEntry) Predict(features []float64) (float64, error) {
	n := len(e.Model.Coefficients)
	if len(features) != n {
		return 0, fmt.Errorf("feature vector length %d does not match model dimension %d", len(features), n)
	}

	scaled := make([]float64, n)
	for i, v := range features {
		std := e.Scaler.Stds[i]
		if std == 0 {
			// Constant feature at training time: standardized value is 0.
			scaled[i] = 0
			continue
		}
		scaled[i] = (v - e.Scaler.Means[i]) / std
	}

	x := mat.NewVecDense(n, scaled)
	w := mat.NewVecDense(n, e.Model.Coefficients)
	yield := mat.Dot(w, x) + e.Model.Intercept

	// Regression output can dip below zero on out-of-distribution inputs.
	if yield < 0 {
		yield = 0
	}

	return yield, nil
}

// LoadReport summarizes the registry's one-time startup load pass. Exposed
// via health introspection.
type LoadReport struct {
	TotalFound         int           `json:"total_found"`
	SuccessfullyLoaded int           `json:"successfully_loaded"`
	FallbackMode       bool          `json:"fallback_mode"`
	Failed             []LoadFailure `json:"failed"`
}

// LoadFailure records a single artifact that could not be loaded.
type LoadFailure struct {
	ArtifactID     string        `json:"artifact_id"`
	Classification LoadErrorKind `json:"classification"`
	Message        string        `json:"message"`
}
