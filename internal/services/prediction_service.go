package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cropyield-platform/internal/models"
	"cropyield-platform/internal/region"
	"cropyield-platform/internal/registry"
	"cropyield-platform/internal/repository"
	"cropyield-platform/pkg/logging"
	"cropyield-platform/pkg/metrics"
)

// PredictionOrchestrator is the composition root for a prediction request:
// resolve the variety (when absent), pick a registry model for the
// location, run the regression, and assemble a response that is transparent
// about the assumptions made.
type PredictionOrchestrator struct {
	engine   *VarietyResolutionEngine
	catalog  repository.VarietyCatalog
	registry *registry.ModelRegistry
	regions  *region.Resolver
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewPredictionOrchestrator creates a new prediction orchestrator
func NewPredictionOrchestrator(
	engine *VarietyResolutionEngine,
	catalog repository.VarietyCatalog,
	modelRegistry *registry.ModelRegistry,
	regions *region.Resolver,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *PredictionOrchestrator {
	return &PredictionOrchestrator{
		engine:   engine,
		catalog:  catalog,
		registry: modelRegistry,
		regions:  regions,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// Predict runs the linear request flow: variety resolution or validation,
// model selection, regression, response assembly.
func (o *PredictionOrchestrator) Predict(ctx context.Context, req *models.PredictionRequest) (*models.PredictionResponse, error) {
	startTime := time.Now()
	defer func() {
		o.metrics.PredictionDuration.Observe(time.Since(startTime).Seconds())
	}()

	var (
		record    *models.VarietyRecord
		selection *models.SelectionResult
		assumed   bool
		err       error
	)

	if strings.TrimSpace(req.Variety) == "" {
		selection, err = o.engine.SelectDefault(ctx, req.CropType, req.Location)
		if err != nil {
			// NoVarietiesAvailable or DatabaseError; both surface as-is.
			return nil, err
		}
		assumed = true

		record, err = o.catalog.VarietyByName(ctx, req.CropType, selection.VarietyName)
		if err != nil {
			// The engine validated existence moments ago; any failure here
			// is a catalog problem, not a missing variety.
			return nil, err
		}
	} else {
		record, err = o.catalog.VarietyByName(ctx, req.CropType, req.Variety)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, &models.InvalidVarietyError{
					CropType:    req.CropType,
					VarietyName: req.Variety,
				}
			}
			return nil, err
		}
	}

	locationKey := o.regions.Resolve(ctx, req.Location)

	entry, err := o.registry.Best(locationKey)
	if err != nil {
		o.logger.Error(ctx, "[PREDICT_NO_MODELS] Registry has no entries anywhere", logging.Fields{
			"crop_type": req.CropType,
			"location":  req.Location,
			"region":    locationKey,
		}, err)
		return nil, err
	}

	features := buildFeatureVector(entry.FeatureList, req, record)
	yield, err := entry.Predict(features)
	if err != nil {
		return nil, fmt.Errorf("prediction failed for %s/%s: %w", entry.LocationKey, entry.AlgorithmName, err)
	}

	response := &models.PredictionResponse{
		Prediction: models.Prediction{
			YieldTonsPerHectare: roundYield(yield),
			VarietyUsed:         record.VarietyName,
			VarietyAssumed:      assumed,
			ModelLocation:       entry.LocationKey,
			Algorithm:           entry.AlgorithmName,
			ModelFallback:       entry.Fallback,
		},
	}

	if req.AreaHectares > 0 {
		total := roundYield(yield * req.AreaHectares)
		response.Prediction.TotalYieldTons = &total
	}

	if assumed {
		response.Factors.DefaultVarietySelection = selection
	}

	o.metrics.PredictionsTotal.WithLabelValues(strconv.FormatBool(assumed)).Inc()
	o.logger.Info(ctx, "[PREDICT_COMPLETE] Prediction assembled", logging.Fields{
		"crop_type":       req.CropType,
		"location":        req.Location,
		"region":          locationKey,
		"variety_used":    record.VarietyName,
		"variety_assumed": assumed,
		"model_location":  entry.LocationKey,
		"algorithm":       entry.AlgorithmName,
		"model_fallback":  entry.Fallback,
		"yield_t_ha":      response.Prediction.YieldTonsPerHectare,
		"timing_ms":       time.Since(startTime).Milliseconds(),
	})

	return response, nil
}

// buildFeatureVector maps the model's feature list onto request and variety
// attributes. Features the request cannot supply default to zero, which
// standardizes to the training mean for fallback models.
func buildFeatureVector(featureList []string, req *models.PredictionRequest, record *models.VarietyRecord) []float64 {
	values := map[string]float64{
		"area_hectares":   req.AreaHectares,
		"yield_potential": record.YieldPotential,
		"maturity_days":   float64(record.MaturityDays),
	}

	features := make([]float64, len(featureList))
	for i, name := range featureList {
		features[i] = values[name]
	}
	return features
}

// roundYield rounds to two decimals for presentation.
func roundYield(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
