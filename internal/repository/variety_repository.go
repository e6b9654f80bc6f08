package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cropyield-platform/internal/models"
	"cropyield-platform/pkg/database"
	"cropyield-platform/pkg/logging"
	"cropyield-platform/pkg/metrics"
)

// VarietyCatalog provides read access to persisted cultivar records, plus
// the write operations used by the catalog seeder. This subsystem never
// mutates the catalog at serving time.
type VarietyCatalog interface {
	// RegionalVarieties returns varieties of a crop whose region_prevalence
	// mentions the region, ordered by yield_potential descending (catalog
	// order on ties). Empty slice, not an error, when nothing matches.
	RegionalVarieties(ctx context.Context, cropType, region string) ([]*models.VarietyRecord, error)

	// VarietyByName returns the record for (cropType, name) or a
	// NotFoundError. Used for existence validation.
	VarietyByName(ctx context.Context, cropType, name string) (*models.VarietyRecord, error)

	// ListVarieties returns varieties with filtering and pagination.
	ListVarieties(ctx context.Context, filter VarietyFilter) ([]*models.VarietyRecord, int, error)

	// Seeding operations
	CreateVariety(ctx context.Context, record *models.VarietyRecord) error
	CreateVarietiesBatch(ctx context.Context, records []*models.VarietyRecord) error

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// VarietyFilter defines filters for listing varieties
type VarietyFilter struct {
	CropType *string
	Region   *string
	Limit    int
	Offset   int
}

// varietyRepository implements VarietyCatalog over Postgres
type varietyRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewVarietyRepository creates a new variety catalog repository
func NewVarietyRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) VarietyCatalog {
	return &varietyRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// RegionalVarieties queries varieties by crop and region prevalence
func (r *varietyRepository) RegionalVarieties(ctx context.Context, cropType, region string) ([]*models.VarietyRecord, error) {
	query := `
		SELECT id, crop_type, variety_name, region_prevalence, yield_potential,
		       maturity_days, drought_tolerance, disease_resistance, created_at
		FROM variety_catalog
		WHERE crop_type = $1
		  AND region_prevalence ILIKE '%' || $2 || '%'
		ORDER BY yield_potential DESC, id
	`

	var records []*models.VarietyRecord
	err := r.db.SelectContext(ctx, "regional_varieties", &records, query, cropType, region)
	if err != nil {
		return nil, &models.DatabaseError{Op: "regional_varieties", Err: err}
	}

	r.logger.Debug(ctx, "[REPO_REGIONAL_VARIETIES] Regional query completed", logging.Fields{
		"crop_type": cropType,
		"region":    region,
		"count":     len(records),
	})

	return records, nil
}

// VarietyByName retrieves a single variety by crop and name
func (r *varietyRepository) VarietyByName(ctx context.Context, cropType, name string) (*models.VarietyRecord, error) {
	query := `
		SELECT id, crop_type, variety_name, region_prevalence, yield_potential,
		       maturity_days, drought_tolerance, disease_resistance, created_at
		FROM variety_catalog
		WHERE crop_type = $1 AND variety_name = $2
	`

	var record models.VarietyRecord
	err := r.db.GetContext(ctx, "variety_by_name", &record, query, cropType, name)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{
			Resource: "variety",
			ID:       fmt.Sprintf("%s/%s", cropType, name),
		}
	}

	if err != nil {
		return nil, &models.DatabaseError{Op: "variety_by_name", Err: err}
	}

	return &record, nil
}

// ListVarieties retrieves varieties with filtering and pagination
func (r *varietyRepository) ListVarieties(ctx context.Context, filter VarietyFilter) ([]*models.VarietyRecord, int, error) {
	query := `
		SELECT id, crop_type, variety_name, region_prevalence, yield_potential,
		       maturity_days, drought_tolerance, disease_resistance, created_at
		FROM variety_catalog
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.CropType != nil {
		query += fmt.Sprintf(" AND crop_type = $%d", argNum)
		args = append(args, *filter.CropType)
		argNum++
	}

	if filter.Region != nil {
		query += fmt.Sprintf(" AND region_prevalence ILIKE '%%' || $%d || '%%'", argNum)
		args = append(args, *filter.Region)
		argNum++
	}

	// Get total count
	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := r.db.GetContext(ctx, "count_varieties", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, &models.DatabaseError{Op: "count_varieties", Err: err}
	}

	// Add ordering and pagination
	query += " ORDER BY crop_type, yield_potential DESC, variety_name"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var records []*models.VarietyRecord
	err = r.db.SelectContext(ctx, "list_varieties", &records, query, args...)
	if err != nil {
		return nil, 0, &models.DatabaseError{Op: "list_varieties", Err: err}
	}

	return records, totalCount, nil
}

// CreateVariety inserts a single variety record
func (r *varietyRepository) CreateVariety(ctx context.Context, record *models.VarietyRecord) error {
	query := `
		INSERT INTO variety_catalog (
			crop_type, variety_name, region_prevalence, yield_potential,
			maturity_days, drought_tolerance, disease_resistance, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (crop_type, variety_name) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, "insert_variety", query,
		record.CropType,
		record.VarietyName,
		record.RegionPrevalence,
		record.YieldPotential,
		record.MaturityDays,
		record.DroughtTolerance,
		record.DiseaseResistance,
		record.CreatedAt,
	)

	if err != nil {
		return &models.DatabaseError{Op: "insert_variety", Err: err}
	}

	return nil
}

// CreateVarietiesBatch inserts multiple variety records in one transaction
func (r *varietyRepository) CreateVarietiesBatch(ctx context.Context, records []*models.VarietyRecord) error {
	if len(records) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.SeedingBatchSize.Observe(float64(len(records)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(records),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return &models.DatabaseError{Op: "begin_batch", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO variety_catalog (
			crop_type, variety_name, region_prevalence, yield_potential,
			maturity_days, drought_tolerance, disease_resistance, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (crop_type, variety_name) DO UPDATE SET
			region_prevalence = EXCLUDED.region_prevalence,
			yield_potential = EXCLUDED.yield_potential,
			maturity_days = EXCLUDED.maturity_days,
			drought_tolerance = EXCLUDED.drought_tolerance,
			disease_resistance = EXCLUDED.disease_resistance
	`)
	if err != nil {
		return &models.DatabaseError{Op: "prepare_batch", Err: err}
	}
	defer stmt.Close()

	for _, record := range records {
		_, err := stmt.ExecContext(ctx,
			record.CropType,
			record.VarietyName,
			record.RegionPrevalence,
			record.YieldPotential,
			record.MaturityDays,
			record.DroughtTolerance,
			record.DiseaseResistance,
			record.CreatedAt,
		)
		if err != nil {
			return &models.DatabaseError{Op: "insert_batch", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &models.DatabaseError{Op: "commit_batch", Err: err}
	}

	r.metrics.SeedingRecordsTotal.Add(float64(len(records)))

	return nil
}

// HealthCheck performs a repository health check
func (r *varietyRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error. Distinct from a
// query failure: the catalog answered, the record does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
