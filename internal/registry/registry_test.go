package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"cropyield-platform/internal/models"
	"cropyield-platform/internal/region"
	"cropyield-platform/pkg/logging"
	"cropyield-platform/pkg/metrics"
)

// One collector for the whole test binary; promauto registers globally.
var testMetrics = metrics.NewCollector("cropyield_registry_test")

func testLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("registry-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRegistry(t *testing.T, dir string) *ModelRegistry {
	t.Helper()
	logger := testLogger()
	guard := NewCompatibilityGuard(logger)
	return NewModelRegistry(dir, guard, logger, testMetrics)
}

func validArtifact(location, algorithm string, r2 float64) *models.ModelArtifact {
	return &models.ModelArtifact{
		LocationKey:   location,
		AlgorithmName: algorithm,
		Model: &models.LinearModel{
			Coefficients: []float64{0.1, 0.8, 0.05},
			Intercept:    2.0,
		},
		Scaler: &models.StandardScaler{
			Means: []float64{5, 4, 120},
			Stds:  []float64{2, 1, 15},
		},
		FeatureList: []string{"area_hectares", "yield_potential", "maturity_days"},
		Metrics:     &models.ModelMetrics{R2: r2},
		Environment: &models.EnvironmentFingerprint{
			MatrixLibVersion:     "2.0",
			RegressionLibVersion: "1.7",
		},
	}
}

func writeArtifact(t *testing.T, dir, name string, artifact *models.ModelArtifact) {
	t.Helper()
	data, err := json.Marshal(artifact)
	if err != nil {
		t.Fatalf("marshal artifact: %v", err)
	}
	writeFile(t, dir, name, data)
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
}

func TestModelRegistry_LoadAll_FullSet(t *testing.T) {
	dir := t.TempDir()

	locations := []string{"Punjab", "Haryana", "Uttar Pradesh", "Madhya Pradesh", "Rajasthan"}
	algorithms := []string{"linear", "ridge", "lasso"}

	for _, location := range locations {
		for _, algorithm := range algorithms {
			name := fmt.Sprintf("%s_%s.json", location, algorithm)
			writeArtifact(t, dir, name, validArtifact(location, algorithm, 0.8))
		}
	}

	r := newTestRegistry(t, dir)
	report := r.LoadAll(context.Background())

	if report.TotalFound != 15 {
		t.Errorf("TotalFound = %d, want 15", report.TotalFound)
	}
	if report.SuccessfullyLoaded != 15 {
		t.Errorf("SuccessfullyLoaded = %d, want 15", report.SuccessfullyLoaded)
	}
	if report.FallbackMode {
		t.Error("FallbackMode should be false when all artifacts load")
	}
	if len(report.Failed) != 0 {
		t.Errorf("Failed = %d, want 0", len(report.Failed))
	}
	if got := len(r.Locations()); got != 5 {
		t.Errorf("Locations() count = %d, want 5", got)
	}
	for _, location := range locations {
		if entries := r.Get(location); len(entries) != 3 {
			t.Errorf("Get(%q) returned %d entries, want 3", location, len(entries))
		}
	}
}

func TestModelRegistry_LoadAll_ClassifiesAndContinues(t *testing.T) {
	dir := t.TempDir()

	writeArtifact(t, dir, "a_good.json", validArtifact("Punjab", "linear", 0.8))

	// Newer matrix schema than the runtime supports.
	badMatrix := validArtifact("Haryana", "linear", 0.8)
	badMatrix.Environment.MatrixLibVersion = "3.0"
	writeArtifact(t, dir, "b_matrix.json", badMatrix)

	// Newer regression schema than the runtime supports.
	badRegression := validArtifact("Haryana", "ridge", 0.8)
	badRegression.Environment.RegressionLibVersion = "2.5"
	writeArtifact(t, dir, "c_regression.json", badRegression)

	// Missing required keys.
	badStructure := validArtifact("Rajasthan", "linear", 0.8)
	badStructure.Scaler = nil
	badStructure.Metrics = nil
	writeArtifact(t, dir, "d_structure.json", badStructure)

	// Not JSON at all.
	writeFile(t, dir, "e_garbage.json", []byte("not json{{"))

	r := newTestRegistry(t, dir)
	report := r.LoadAll(context.Background())

	if report.TotalFound != 5 {
		t.Errorf("TotalFound = %d, want 5", report.TotalFound)
	}
	if report.SuccessfullyLoaded != 1 {
		t.Errorf("SuccessfullyLoaded = %d, want 1", report.SuccessfullyLoaded)
	}
	if report.FallbackMode {
		t.Error("FallbackMode should be false while at least one artifact loads")
	}
	if len(report.Failed) != 4 {
		t.Fatalf("Failed = %d, want 4", len(report.Failed))
	}

	wantKinds := map[string]models.LoadErrorKind{
		"b_matrix":     models.LoadErrorMatrixVersion,
		"c_regression": models.LoadErrorRegressionVersion,
		"d_structure":  models.LoadErrorInvalidStructure,
		"e_garbage":    models.LoadErrorGeneric,
	}
	for _, failure := range report.Failed {
		want, ok := wantKinds[failure.ArtifactID]
		if !ok {
			t.Errorf("unexpected failed artifact %q", failure.ArtifactID)
			continue
		}
		if failure.Classification != want {
			t.Errorf("artifact %q classified %q, want %q", failure.ArtifactID, failure.Classification, want)
		}
	}
}

func TestModelRegistry_LoadAll_DimensionMismatch(t *testing.T) {
	dir := t.TempDir()

	artifact := validArtifact("Punjab", "linear", 0.8)
	artifact.Model.Coefficients = []float64{0.1, 0.8} // 2 coefficients, 3 features
	writeArtifact(t, dir, "mismatch.json", artifact)

	r := newTestRegistry(t, dir)
	report := r.LoadAll(context.Background())

	if len(report.Failed) != 1 {
		t.Fatalf("Failed = %d, want 1", len(report.Failed))
	}
	if report.Failed[0].Classification != models.LoadErrorInvalidStructure {
		t.Errorf("classification = %q, want %q", report.Failed[0].Classification, models.LoadErrorInvalidStructure)
	}
}

func TestModelRegistry_LoadAll_EmptyDirEntersFallbackMode(t *testing.T) {
	dir := t.TempDir()

	r := newTestRegistry(t, dir)
	report := r.LoadAll(context.Background())

	if !report.FallbackMode {
		t.Fatal("FallbackMode should be true when nothing loads")
	}
	if report.SuccessfullyLoaded != 0 {
		t.Errorf("SuccessfullyLoaded = %d, want 0", report.SuccessfullyLoaded)
	}

	// Every served location gets a synthetic entry.
	if got := len(r.Locations()); got != len(servedLocations) {
		t.Errorf("Locations() count = %d, want %d", got, len(servedLocations))
	}

	entry, err := r.Best("Punjab")
	if err != nil {
		t.Fatalf("Best() error = %v", err)
	}
	if !entry.Fallback {
		t.Error("fallback entry should be flagged")
	}

	yield, err := entry.Predict([]float64{10, 5, 120})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if yield != fallbackBaselineYield {
		t.Errorf("fallback yield = %v, want %v", yield, fallbackBaselineYield)
	}
}

func TestModelRegistry_Best(t *testing.T) {
	dir := t.TempDir()

	writeArtifact(t, dir, "punjab_linear.json", validArtifact("Punjab", "linear", 0.70))
	writeArtifact(t, dir, "punjab_ridge.json", validArtifact("Punjab", "ridge", 0.85))
	writeArtifact(t, dir, "up_linear.json", validArtifact("Uttar Pradesh", "linear", 0.60))

	r := newTestRegistry(t, dir)
	r.LoadAll(context.Background())

	// Exact key: picks the highest R2.
	entry, err := r.Best("Punjab")
	if err != nil {
		t.Fatalf("Best() error = %v", err)
	}
	if entry.AlgorithmName != "ridge" {
		t.Errorf("Best(Punjab) = %q, want ridge", entry.AlgorithmName)
	}

	// Neighbor preference: Bihar prefers Uttar Pradesh.
	entry, err = r.Best("Bihar")
	if err != nil {
		t.Fatalf("Best() error = %v", err)
	}
	if entry.LocationKey != "Uttar Pradesh" {
		t.Errorf("Best(Bihar) location = %q, want Uttar Pradesh", entry.LocationKey)
	}

	// No preference entry: deterministic sorted-first substitute.
	entry, err = r.Best(region.AllNorthIndia)
	if err != nil {
		t.Fatalf("Best() error = %v", err)
	}
	if entry.LocationKey != "Punjab" {
		t.Errorf("Best(AllNorthIndia) location = %q, want Punjab", entry.LocationKey)
	}
}

func TestModelRegistry_Best_TieBreaksByAlgorithmName(t *testing.T) {
	dir := t.TempDir()

	writeArtifact(t, dir, "a.json", validArtifact("Punjab", "ridge", 0.80))
	writeArtifact(t, dir, "b.json", validArtifact("Punjab", "lasso", 0.80))

	r := newTestRegistry(t, dir)
	r.LoadAll(context.Background())

	entry, err := r.Best("Punjab")
	if err != nil {
		t.Fatalf("Best() error = %v", err)
	}
	if entry.AlgorithmName != "lasso" {
		t.Errorf("tie break picked %q, want lasso", entry.AlgorithmName)
	}
}

func TestModelRegistry_Best_EmptyRegistry(t *testing.T) {
	r := newTestRegistry(t, t.TempDir())
	// LoadAll not called: registry genuinely empty.

	if _, err := r.Best("Punjab"); err != ErrNoModels {
		t.Errorf("Best() error = %v, want ErrNoModels", err)
	}
}
