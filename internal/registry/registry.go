package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cropyield-platform/internal/models"
	"cropyield-platform/internal/region"
	"cropyield-platform/pkg/logging"
	"cropyield-platform/pkg/metrics"
)

// ErrNoModels means the registry holds zero entries for every location.
// Callers must fail fast rather than guess.
var ErrNoModels = errors.New("no prediction models available for any location")

// servedLocations are the locations the deployment trains models for. Used
// to synthesize fallback entries when no real artifact loads.
var servedLocations = []string{
	"Punjab",
	"Haryana",
	"Uttar Pradesh",
	"Madhya Pradesh",
	"Rajasthan",
}

// neighborPreference orders which configured location substitutes for a
// region with no model of its own. Regions not listed fall back to the
// first configured location in sorted order.
var neighborPreference = map[string][]string{
	"Bihar":            {"Uttar Pradesh", "Madhya Pradesh"},
	"Delhi":            {"Haryana", "Punjab", "Uttar Pradesh"},
	"Uttarakhand":      {"Uttar Pradesh", "Haryana"},
	"Himachal Pradesh": {"Punjab", "Haryana"},
	region.AllNorthIndia: {
		"Punjab", "Haryana", "Uttar Pradesh", "Madhya Pradesh", "Rajasthan",
	},
}

// Baseline yield (t/ha) a synthetic fallback model predicts.
const fallbackBaselineYield = 2.8

// ModelRegistry owns all loaded model entries. LoadAll runs once during
// startup, before the service accepts traffic; after that the registry is
// immutable and shared read-only across requests.
type ModelRegistry struct {
	dir     string
	guard   *CompatibilityGuard
	logger  *logging.ContextLogger
	metrics *metrics.Collector

	entries map[string][]*models.ModelEntry
	report  *models.LoadReport
}

// NewModelRegistry creates an empty registry reading artifacts from dir.
func NewModelRegistry(dir string, guard *CompatibilityGuard, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ModelRegistry {
	return &ModelRegistry{
		dir:     dir,
		guard:   guard,
		logger:  logger.WithFields(logging.Fields{"component": "model_registry"}),
		metrics: metricsCollector,
		entries: make(map[string][]*models.ModelEntry),
	}
}

// LoadAll discovers and loads every artifact in the registry directory.
// Individual failures are classified and recorded; the pass never aborts
// early. When nothing loads, synthetic fallback entries keep the service
// usable with degraded accuracy.
func (r *ModelRegistry) LoadAll(ctx context.Context) *models.LoadReport {
	report := &models.LoadReport{Failed: []models.LoadFailure{}}

	if !r.guard.Check(ctx) {
		envErr := &models.EnvironmentIncompatibleError{FailedChecks: r.guard.FailedChecks()}
		r.logger.Error(ctx, "[REGISTRY_ENV_INCOMPATIBLE] Skipping model loading entirely", logging.Fields{
			"failed_checks": envErr.FailedChecks,
		}, envErr)

		r.enterFallbackMode(ctx, report)
		r.report = report
		return report
	}

	paths, err := filepath.Glob(filepath.Join(r.dir, "*.json"))
	if err != nil {
		r.logger.Error(ctx, "[REGISTRY_DISCOVERY_ERROR] Failed to scan artifact directory", logging.Fields{
			"dir": r.dir,
		}, err)
		paths = nil
	}
	sort.Strings(paths)
	report.TotalFound = len(paths)

	for _, path := range paths {
		artifactID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		entry, loadErr := r.loadArtifact(path, artifactID)
		if loadErr != nil {
			report.Failed = append(report.Failed, models.LoadFailure{
				ArtifactID:     loadErr.ArtifactID,
				Classification: loadErr.Kind,
				Message:        loadErr.Message,
			})
			r.metrics.RecordModelLoad(string(loadErr.Kind))
			r.logger.Warn(ctx, "[REGISTRY_LOAD_FAILED] Artifact rejected, continuing", logging.Fields{
				"artifact_id":    loadErr.ArtifactID,
				"classification": string(loadErr.Kind),
				"message":        loadErr.Message,
			})
			continue
		}

		r.entries[entry.LocationKey] = append(r.entries[entry.LocationKey], entry)
		report.SuccessfullyLoaded++
		r.metrics.RecordModelLoad("loaded")
	}

	if report.SuccessfullyLoaded == 0 {
		r.enterFallbackMode(ctx, report)
	}

	r.metrics.ModelsLoaded.Set(float64(report.SuccessfullyLoaded))

	r.logger.Info(ctx, "[REGISTRY_LOAD_COMPLETE] Model load pass finished", logging.Fields{
		"total_found":         report.TotalFound,
		"successfully_loaded": report.SuccessfullyLoaded,
		"failed":              len(report.Failed),
		"fallback_mode":       report.FallbackMode,
		"locations":           len(r.entries),
	})

	r.report = report
	return report
}

// loadArtifact reads and validates one artifact file.
func (r *ModelRegistry) loadArtifact(path, artifactID string) (*models.ModelEntry, *models.ModelLoadError) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.ModelLoadError{
			ArtifactID: artifactID,
			Kind:       models.LoadErrorGeneric,
			Message:    fmt.Sprintf("read failed: %v", err),
		}
	}

	var artifact models.ModelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, &models.ModelLoadError{
			ArtifactID: artifactID,
			Kind:       classifyLoadError(err),
			Message:    fmt.Sprintf("decode failed: %v", err),
		}
	}

	if err := checkArtifactVersions(&artifact); err != nil {
		return nil, &models.ModelLoadError{
			ArtifactID: artifactID,
			Kind:       classifyLoadError(err),
			Message:    err.Error(),
		}
	}

	if missing := missingStructuralKeys(&artifact); len(missing) > 0 {
		return nil, &models.ModelLoadError{
			ArtifactID: artifactID,
			Kind:       models.LoadErrorInvalidStructure,
			Message:    fmt.Sprintf("missing required keys: %s", strings.Join(missing, ", ")),
		}
	}

	n := len(artifact.FeatureList)
	if len(artifact.Model.Coefficients) != n || len(artifact.Scaler.Means) != n || len(artifact.Scaler.Stds) != n {
		return nil, &models.ModelLoadError{
			ArtifactID: artifactID,
			Kind:       models.LoadErrorInvalidStructure,
			Message: fmt.Sprintf("dimension mismatch: %d features, %d coefficients, %d/%d scaler params",
				n, len(artifact.Model.Coefficients), len(artifact.Scaler.Means), len(artifact.Scaler.Stds)),
		}
	}

	return &models.ModelEntry{
		LocationKey:   artifact.LocationKey,
		AlgorithmName: artifact.AlgorithmName,
		Model:         artifact.Model,
		Scaler:        artifact.Scaler,
		FeatureList:   artifact.FeatureList,
		Metrics:       artifact.Metrics,
		CreatedAt:     artifact.CreatedAt,
		Environment:   artifact.Environment,
	}, nil
}

// checkArtifactVersions gates artifacts written by a newer numeric stack
// than this runtime supports. Error messages carry the signatures the
// classifier keys on.
func checkArtifactVersions(artifact *models.ModelArtifact) error {
	if artifact.Environment == nil {
		// No fingerprint: assume compatible, structural validation decides.
		return nil
	}

	if v := artifact.Environment.MatrixLibVersion; v != "" {
		ok, err := atLeast(runtimeMatrixVersion, v)
		if err != nil {
			return fmt.Errorf("matrix schema version unreadable: %w", err)
		}
		if !ok {
			return fmt.Errorf("matrix schema %s newer than supported runtime %s", v, runtimeMatrixVersion)
		}
	}

	if v := artifact.Environment.RegressionLibVersion; v != "" {
		ok, err := atLeast(runtimeRegressionVersion, v)
		if err != nil {
			return fmt.Errorf("regression schema version unreadable: %w", err)
		}
		if !ok {
			return fmt.Errorf("regression schema %s newer than supported runtime %s", v, runtimeRegressionVersion)
		}
	}

	return nil
}

// missingStructuralKeys returns the required artifact keys that are absent.
func missingStructuralKeys(artifact *models.ModelArtifact) []string {
	var missing []string
	if artifact.LocationKey == "" {
		missing = append(missing, "location_key")
	}
	if artifact.Model == nil {
		missing = append(missing, "model")
	}
	if artifact.Scaler == nil {
		missing = append(missing, "scaler")
	}
	if len(artifact.FeatureList) == 0 {
		missing = append(missing, "feature_list")
	}
	if artifact.Metrics == nil {
		missing = append(missing, "metrics")
	}
	return missing
}

// enterFallbackMode installs one synthetic entry per served location.
func (r *ModelRegistry) enterFallbackMode(ctx context.Context, report *models.LoadReport) {
	report.FallbackMode = true
	r.metrics.RegistryFallbackMode.Set(1)

	for _, location := range servedLocations {
		r.entries[location] = []*models.ModelEntry{fallbackEntry(location)}
	}

	r.logger.Warn(ctx, "[REGISTRY_FALLBACK_MODE] Serving synthetic baseline models", logging.Fields{
		"locations": len(servedLocations),
		"baseline":  fallbackBaselineYield,
	})
}

// fallbackEntry synthesizes a minimal constant model: zero coefficients,
// baseline intercept. Degraded but serviceable.
func fallbackEntry(location string) *models.ModelEntry {
	features := []string{"area_hectares", "yield_potential", "maturity_days"}
	n := len(features)

	return &models.ModelEntry{
		LocationKey:   location,
		AlgorithmName: "baseline_fallback",
		Model: &models.LinearModel{
			Coefficients: make([]float64, n),
			Intercept:    fallbackBaselineYield,
		},
		Scaler: &models.StandardScaler{
			Means: make([]float64, n),
			Stds:  onesVector(n),
		},
		FeatureList: features,
		Metrics:     &models.ModelMetrics{},
		CreatedAt:   time.Now().UTC(),
		Fallback:    true,
	}
}

func onesVector(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

// Get returns the entries loaded for a location key, or nil.
func (r *ModelRegistry) Get(locationKey string) []*models.ModelEntry {
	return r.entries[locationKey]
}

// Locations returns the sorted location keys the registry can serve.
func (r *ModelRegistry) Locations() []string {
	locations := make([]string, 0, len(r.entries))
	for location := range r.entries {
		locations = append(locations, location)
	}
	sort.Strings(locations)
	return locations
}

// Report returns the startup LoadReport.
func (r *ModelRegistry) Report() *models.LoadReport {
	return r.report
}

// Best returns the strongest entry for a location: exact key first, then
// the nearest configured location, never a silent guess. Returns
// ErrNoModels when the registry is empty everywhere.
func (r *ModelRegistry) Best(locationKey string) (*models.ModelEntry, error) {
	if len(r.entries) == 0 {
		return nil, ErrNoModels
	}

	key := locationKey
	if _, ok := r.entries[key]; !ok {
		key = r.nearestLocation(locationKey)
	}

	entries := r.entries[key]
	if len(entries) == 0 {
		return nil, ErrNoModels
	}

	best := entries[0]
	for _, entry := range entries[1:] {
		if entry.Metrics.R2 > best.Metrics.R2 ||
			(entry.Metrics.R2 == best.Metrics.R2 && entry.AlgorithmName < best.AlgorithmName) {
			best = entry
		}
	}

	return best, nil
}

// nearestLocation picks the substitute location for a region with no model
// of its own: adjacency preference first, then the first available key in
// sorted order for determinism.
func (r *ModelRegistry) nearestLocation(locationKey string) string {
	for _, neighbor := range neighborPreference[locationKey] {
		if _, ok := r.entries[neighbor]; ok {
			return neighbor
		}
	}
	return r.Locations()[0]
}
