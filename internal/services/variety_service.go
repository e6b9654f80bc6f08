package services

import (
	"context"
	"time"

	"cropyield-platform/internal/models"
	"cropyield-platform/internal/region"
	"cropyield-platform/internal/repository"
	"cropyield-platform/pkg/logging"
	"cropyield-platform/pkg/metrics"
)

// defaultVarietyPriority is the fixed per-crop priority list used when no
// regional varieties exist anywhere. Order matters.
var defaultVarietyPriority = map[string][]string{
	"Rice":  {"IR-64", "Basmati 370", "Swarna"},
	"Wheat": {"HD 3086", "PBW 725", "C 306"},
	"Maize": {"DHM 117", "HQPM 1", "Baby Corn Hybrid"},
}

const maxAlternatives = 3

const globalDefaultNote = "No regional varieties found"

// VarietyResolutionEngine selects a concrete default variety for a crop and
// location, walking an ordered fallback chain and validating every
// candidate against the catalog before accepting it.
type VarietyResolutionEngine struct {
	catalog repository.VarietyCatalog
	regions *region.Resolver
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewVarietyResolutionEngine creates a new resolution engine
func NewVarietyResolutionEngine(
	catalog repository.VarietyCatalog,
	regions *region.Resolver,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *VarietyResolutionEngine {
	return &VarietyResolutionEngine{
		catalog: catalog,
		regions: regions,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// selectionStrategy is one tier of the fallback chain. found=false with a
// nil error means "this tier has nothing, try the next one".
type selectionStrategy struct {
	name string
	run  func(ctx context.Context, cropType, resolvedRegion string) (*models.SelectionResult, bool, error)
}

// SelectDefault resolves the region and walks the fallback chain in strict
// order, short-circuiting on the first tier that produces a validated
// result. Exhausting every tier raises NoVarietiesAvailable.
func (e *VarietyResolutionEngine) SelectDefault(ctx context.Context, cropType, location string) (*models.SelectionResult, error) {
	startTime := time.Now()
	defer func() {
		e.metrics.ResolutionDuration.Observe(time.Since(startTime).Seconds())
	}()

	resolvedRegion := e.regions.Resolve(ctx, location)

	strategies := []selectionStrategy{
		{name: string(models.ReasonRegionalHighestYield), run: e.selectRegionalHighestYield},
		{name: string(models.ReasonRegionalFallback), run: e.selectRegionalFallback},
		{name: string(models.ReasonGlobalDefault), run: e.selectGlobalDefault},
	}

	for i, strategy := range strategies {
		result, found, err := strategy.run(ctx, cropType, resolvedRegion)
		if err != nil {
			e.logger.Error(ctx, "[VARIETY_SELECT_ERROR] Selection tier failed", logging.Fields{
				"crop_type": cropType,
				"region":    resolvedRegion,
				"tier":      strategy.name,
			}, err)
			return nil, err
		}

		if found {
			e.metrics.RecordResolutionOutcome(string(result.Reason))
			e.logger.Info(ctx, "[VARIETY_SELECTED] Default variety selected", logging.Fields{
				"crop_type": cropType,
				"region":    resolvedRegion,
				"selected":  result.VarietyName,
				"reason":    string(result.Reason),
				"timing_ms": time.Since(startTime).Milliseconds(),
			})
			return result, nil
		}

		if i < len(strategies)-1 {
			e.metrics.RecordTierFallback(strategy.name, strategies[i+1].name)
			e.logger.Warn(ctx, "[VARIETY_TIER_FALLBACK] Tier empty, trying next", logging.Fields{
				"crop_type": cropType,
				"region":    resolvedRegion,
				"from_tier": strategy.name,
				"to_tier":   strategies[i+1].name,
			})
		}
	}

	// All tiers exhausted: unrecognized crop type, or every priority-list
	// entry failed existence validation.
	selErr := &models.NoVarietiesAvailableError{
		CropType:  cropType,
		Region:    resolvedRegion,
		Attempted: defaultVarietyPriority[cropType],
	}

	e.metrics.RecordResolutionOutcome("no_varieties_available")
	e.logger.Error(ctx, "[VARIETY_SELECT_EXHAUSTED] All fallback tiers exhausted", logging.Fields{
		"crop_type": cropType,
		"region":    resolvedRegion,
		"attempted": selErr.Attempted,
	}, selErr)

	return nil, selErr
}

// selectRegionalHighestYield takes the highest yield_potential variety
// grown in the resolved region, re-validating it against the catalog.
func (e *VarietyResolutionEngine) selectRegionalHighestYield(ctx context.Context, cropType, resolvedRegion string) (*models.SelectionResult, bool, error) {
	result, found, err := e.selectFromRegion(ctx, cropType, resolvedRegion)
	if err != nil || !found {
		return nil, false, err
	}

	result.Reason = models.ReasonRegionalHighestYield
	result.Region = resolvedRegion
	return result, true, nil
}

// selectRegionalFallback repeats the regional query against the
// AllNorthIndia pool. Skipped when the resolved region already is it.
func (e *VarietyResolutionEngine) selectRegionalFallback(ctx context.Context, cropType, resolvedRegion string) (*models.SelectionResult, bool, error) {
	if resolvedRegion == region.AllNorthIndia {
		return nil, false, nil
	}

	result, found, err := e.selectFromRegion(ctx, cropType, region.AllNorthIndia)
	if err != nil || !found {
		return nil, false, err
	}

	result.Reason = models.ReasonRegionalFallback
	result.Region = region.AllNorthIndia
	result.OriginalRegion = resolvedRegion
	return result, true, nil
}

// selectFromRegion runs the regional catalog query and builds the common
// parts of a SelectionResult from the top record.
func (e *VarietyResolutionEngine) selectFromRegion(ctx context.Context, cropType, queryRegion string) (*models.SelectionResult, bool, error) {
	records, err := e.catalog.RegionalVarieties(ctx, cropType, queryRegion)
	if err != nil {
		return nil, false, err
	}

	if len(records) == 0 {
		return nil, false, nil
	}

	top := records[0]

	// Re-validate against catalog drift between query and selection.
	if _, err := e.catalog.VarietyByName(ctx, cropType, top.VarietyName); err != nil {
		if repository.IsNotFound(err) {
			e.logger.Warn(ctx, "[VARIETY_DRIFT] Top regional variety vanished before validation", logging.Fields{
				"crop_type": cropType,
				"region":    queryRegion,
				"variety":   top.VarietyName,
			})
			return nil, false, nil
		}
		return nil, false, err
	}

	alternatives := make([]string, 0, maxAlternatives)
	for _, record := range records[1:] {
		if len(alternatives) == maxAlternatives {
			break
		}
		alternatives = append(alternatives, record.VarietyName)
	}

	yieldPotential := top.YieldPotential

	return &models.SelectionResult{
		VarietyName:    top.VarietyName,
		YieldPotential: &yieldPotential,
		Alternatives:   alternatives,
	}, true, nil
}

// selectGlobalDefault walks the fixed per-crop priority list, returning the
// first entry that exists in the catalog.
func (e *VarietyResolutionEngine) selectGlobalDefault(ctx context.Context, cropType, resolvedRegion string) (*models.SelectionResult, bool, error) {
	for _, name := range defaultVarietyPriority[cropType] {
		_, err := e.catalog.VarietyByName(ctx, cropType, name)
		if err != nil {
			if repository.IsNotFound(err) {
				continue
			}
			return nil, false, err
		}

		return &models.SelectionResult{
			VarietyName: name,
			Reason:      models.ReasonGlobalDefault,
			Region:      resolvedRegion,
			Note:        globalDefaultNote,
		}, true, nil
	}

	return nil, false, nil
}
