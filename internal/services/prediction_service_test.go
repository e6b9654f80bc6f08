package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cropyield-platform/internal/models"
	"cropyield-platform/internal/region"
	"cropyield-platform/internal/registry"
)

// constantArtifact yields the intercept for any input: zero coefficients,
// unit stds. Keeps expected values exact.
func constantArtifact(location string, intercept, r2 float64) *models.ModelArtifact {
	return &models.ModelArtifact{
		LocationKey:   location,
		AlgorithmName: "linear",
		Model: &models.LinearModel{
			Coefficients: []float64{0, 0, 0},
			Intercept:    intercept,
		},
		Scaler: &models.StandardScaler{
			Means: []float64{0, 0, 0},
			Stds:  []float64{1, 1, 1},
		},
		FeatureList: []string{"area_hectares", "yield_potential", "maturity_days"},
		Metrics:     &models.ModelMetrics{R2: r2},
		Environment: &models.EnvironmentFingerprint{
			MatrixLibVersion:     "2.0",
			RegressionLibVersion: "1.7",
		},
	}
}

func loadedRegistry(t *testing.T, artifacts ...*models.ModelArtifact) *registry.ModelRegistry {
	t.Helper()
	dir := t.TempDir()

	for i, artifact := range artifacts {
		data, err := json.Marshal(artifact)
		if err != nil {
			t.Fatalf("marshal artifact: %v", err)
		}
		name := filepath.Join(dir, artifact.LocationKey+"_"+string(rune('a'+i))+".json")
		if err := os.WriteFile(name, data, 0o644); err != nil {
			t.Fatalf("write artifact: %v", err)
		}
	}

	logger := testLogger()
	guard := registry.NewCompatibilityGuard(logger)
	r := registry.NewModelRegistry(dir, guard, logger, testMetrics)
	r.LoadAll(context.Background())
	return r
}

func newTestOrchestrator(catalog *fakeCatalog, modelRegistry *registry.ModelRegistry) *PredictionOrchestrator {
	logger := testLogger()
	regions := region.NewResolver(logger)
	engine := NewVarietyResolutionEngine(catalog, regions, logger, testMetrics)
	return NewPredictionOrchestrator(engine, catalog, modelRegistry, regions, logger, testMetrics)
}

func TestPredict_SuppliedVariety(t *testing.T) {
	catalog := seededCatalog()
	modelRegistry := loadedRegistry(t, constantArtifact("Punjab", 5.0, 0.8))
	orchestrator := newTestOrchestrator(catalog, modelRegistry)

	resp, err := orchestrator.Predict(context.Background(), &models.PredictionRequest{
		CropType:     "Wheat",
		Location:     "Chandigarh",
		Variety:      "HD 3086",
		AreaHectares: 2.0,
	})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	if resp.Prediction.VarietyAssumed {
		t.Error("VarietyAssumed = true, want false for a supplied variety")
	}
	if resp.Prediction.VarietyUsed != "HD 3086" {
		t.Errorf("VarietyUsed = %q, want HD 3086", resp.Prediction.VarietyUsed)
	}
	if resp.Factors.DefaultVarietySelection != nil {
		t.Error("DefaultVarietySelection should be absent for a supplied variety")
	}
	if resp.Prediction.YieldTonsPerHectare != 5.0 {
		t.Errorf("YieldTonsPerHectare = %v, want 5.0", resp.Prediction.YieldTonsPerHectare)
	}
	if resp.Prediction.TotalYieldTons == nil || *resp.Prediction.TotalYieldTons != 10.0 {
		t.Errorf("TotalYieldTons = %v, want 10.0", resp.Prediction.TotalYieldTons)
	}
	if resp.Prediction.ModelLocation != "Punjab" {
		t.Errorf("ModelLocation = %q, want Punjab", resp.Prediction.ModelLocation)
	}
	if resp.Prediction.ModelFallback {
		t.Error("ModelFallback = true, want false for a real model")
	}
}

func TestPredict_SuppliedVariety_AbsenceOfSelectionBlockOnTheWire(t *testing.T) {
	catalog := seededCatalog()
	modelRegistry := loadedRegistry(t, constantArtifact("Punjab", 5.0, 0.8))
	orchestrator := newTestOrchestrator(catalog, modelRegistry)

	resp, err := orchestrator.Predict(context.Background(), &models.PredictionRequest{
		CropType: "Wheat",
		Location: "Chandigarh",
		Variety:  "HD 3086",
	})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	var factors map[string]json.RawMessage
	if err := json.Unmarshal(decoded["factors"], &factors); err != nil {
		t.Fatalf("unmarshal factors: %v", err)
	}

	// The key must be absent entirely, not serialized as null.
	if _, present := factors["default_variety_selection"]; present {
		t.Error("default_variety_selection key should be absent when variety was supplied")
	}
}

func TestPredict_AssumedVariety(t *testing.T) {
	catalog := seededCatalog()
	modelRegistry := loadedRegistry(t, constantArtifact("Punjab", 6.2, 0.8))
	orchestrator := newTestOrchestrator(catalog, modelRegistry)

	resp, err := orchestrator.Predict(context.Background(), &models.PredictionRequest{
		CropType: "Wheat",
		Location: "Chandigarh",
	})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	if !resp.Prediction.VarietyAssumed {
		t.Error("VarietyAssumed = false, want true")
	}
	if resp.Prediction.VarietyUsed != "PBW 725" {
		t.Errorf("VarietyUsed = %q, want PBW 725", resp.Prediction.VarietyUsed)
	}

	selection := resp.Factors.DefaultVarietySelection
	if selection == nil {
		t.Fatal("DefaultVarietySelection should be present for an assumed variety")
	}
	if selection.VarietyName != "PBW 725" {
		t.Errorf("selection VarietyName = %q, want PBW 725", selection.VarietyName)
	}
	if selection.Reason != models.ReasonRegionalHighestYield {
		t.Errorf("selection Reason = %q, want %q", selection.Reason, models.ReasonRegionalHighestYield)
	}

	if resp.Prediction.TotalYieldTons != nil {
		t.Error("TotalYieldTons should be absent when area is not supplied")
	}
}

func TestPredict_UnknownSuppliedVariety(t *testing.T) {
	catalog := seededCatalog()
	modelRegistry := loadedRegistry(t, constantArtifact("Punjab", 5.0, 0.8))
	orchestrator := newTestOrchestrator(catalog, modelRegistry)

	_, err := orchestrator.Predict(context.Background(), &models.PredictionRequest{
		CropType: "Wheat",
		Location: "Chandigarh",
		Variety:  "Nonexistent 99",
	})

	var invalid *models.InvalidVarietyError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %T, want *InvalidVarietyError", err)
	}
	if invalid.VarietyName != "Nonexistent 99" {
		t.Errorf("VarietyName = %q, want Nonexistent 99", invalid.VarietyName)
	}
}

func TestPredict_SelectionExhaustionPropagates(t *testing.T) {
	catalog := seededCatalog()
	modelRegistry := loadedRegistry(t, constantArtifact("Punjab", 5.0, 0.8))
	orchestrator := newTestOrchestrator(catalog, modelRegistry)

	_, err := orchestrator.Predict(context.Background(), &models.PredictionRequest{
		CropType: "Barley",
		Location: "Chandigarh",
	})

	var noVarieties *models.NoVarietiesAvailableError
	if !errors.As(err, &noVarieties) {
		t.Fatalf("error = %T, want *NoVarietiesAvailableError", err)
	}
}

func TestPredict_NearestLocationSubstitution(t *testing.T) {
	catalog := seededCatalog()
	// Only Uttar Pradesh has a model; Patna resolves to Bihar, whose
	// nearest configured neighbor is Uttar Pradesh.
	modelRegistry := loadedRegistry(t, constantArtifact("Uttar Pradesh", 4.4, 0.8))
	orchestrator := newTestOrchestrator(catalog, modelRegistry)

	resp, err := orchestrator.Predict(context.Background(), &models.PredictionRequest{
		CropType: "Rice",
		Location: "Patna",
	})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	if resp.Prediction.ModelLocation != "Uttar Pradesh" {
		t.Errorf("ModelLocation = %q, want Uttar Pradesh", resp.Prediction.ModelLocation)
	}
	if resp.Prediction.YieldTonsPerHectare != 4.4 {
		t.Errorf("YieldTonsPerHectare = %v, want 4.4", resp.Prediction.YieldTonsPerHectare)
	}
}

func TestPredict_FallbackRegistryServes(t *testing.T) {
	catalog := seededCatalog()
	// Empty artifact dir: the registry synthesizes baseline entries.
	modelRegistry := loadedRegistry(t)
	orchestrator := newTestOrchestrator(catalog, modelRegistry)

	resp, err := orchestrator.Predict(context.Background(), &models.PredictionRequest{
		CropType: "Wheat",
		Location: "Chandigarh",
	})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	if !resp.Prediction.ModelFallback {
		t.Error("ModelFallback = false, want true for a synthetic model")
	}
	if resp.Prediction.YieldTonsPerHectare != 2.8 {
		t.Errorf("YieldTonsPerHectare = %v, want the 2.8 baseline", resp.Prediction.YieldTonsPerHectare)
	}
}
