package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cropyield-platform/internal/models"
	"cropyield-platform/internal/repository"
	"cropyield-platform/pkg/logging"
	"cropyield-platform/pkg/metrics"
)

// SeedingService loads variety catalog CSV files into the database. Runs
// offline via cmd/seeder, never at serving time.
type SeedingService struct {
	catalog repository.VarietyCatalog
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// SeedingResult contains seeding statistics
type SeedingResult struct {
	TotalFiles        int
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Duration          time.Duration
	Errors            []string
}

// NewSeedingService creates a new seeding service
func NewSeedingService(catalog repository.VarietyCatalog, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *SeedingService {
	return &SeedingService{
		catalog: catalog,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// SeedDirectory seeds all catalog CSV files from a directory
func (s *SeedingService) SeedDirectory(ctx context.Context, dataDir string, batchSize int) (*SeedingResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[SEED_START] Starting catalog seeding", logging.Fields{
		"data_dir":   dataDir,
		"batch_size": batchSize,
	})

	result := &SeedingResult{
		Errors: make([]string, 0),
	}

	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no catalog files found in %s", dataDir)
	}

	result.TotalFiles = len(files)

	for _, filePath := range files {
		fileResult, err := s.seedFile(ctx, filePath, batchSize)
		if err != nil {
			errMsg := fmt.Sprintf("failed to seed %s: %v", filePath, err)
			result.Errors = append(result.Errors, errMsg)
			s.logger.Error(ctx, "[SEED_FILE_ERROR] File seeding failed", logging.Fields{
				"file_path": filePath,
			}, err)
			s.metrics.RecordSeedingError("file_error")
			continue
		}

		result.TotalRecords += fileResult.TotalRecords
		result.SuccessfulRecords += fileResult.SuccessfulRecords
		result.FailedRecords += fileResult.FailedRecords

		s.logger.Info(ctx, "[SEED_FILE_SUCCESS] File seeded", logging.Fields{
			"file_path":          filePath,
			"total_records":      fileResult.TotalRecords,
			"successful_records": fileResult.SuccessfulRecords,
			"failed_records":     fileResult.FailedRecords,
		})
	}

	result.Duration = time.Since(startTime)
	s.metrics.SeedingDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[SEED_COMPLETE] Catalog seeding completed", logging.Fields{
		"total_files":        result.TotalFiles,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
	})

	return result, nil
}

// FileSeedingResult contains per-file seeding statistics
type FileSeedingResult struct {
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
}

// seedFile seeds a single catalog CSV file. Expected columns:
// crop_type,variety_name,region_prevalence,yield_potential,maturity_days,
// drought_tolerance,disease_resistance. A header row is skipped.
func (s *SeedingService) seedFile(ctx context.Context, filePath string, batchSize int) (*FileSeedingResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 7
	reader.TrimLeadingSpace = true

	result := &FileSeedingResult{}
	batch := make([]*models.VarietyRecord, 0, batchSize)
	firstRow := true

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.TotalRecords++
			result.FailedRecords++
			s.metrics.RecordSeedingError("parse_error")
			continue
		}

		// Skip the header row.
		if firstRow {
			firstRow = false
			if row[0] == "crop_type" {
				continue
			}
		}

		result.TotalRecords++

		raw := &models.RawVarietyRecord{
			CropType:          row[0],
			VarietyName:       row[1],
			RegionPrevalence:  row[2],
			YieldPotential:    row[3],
			MaturityDays:      row[4],
			DroughtTolerance:  row[5],
			DiseaseResistance: row[6],
		}

		record, err := raw.ToRecord()
		if err != nil {
			result.FailedRecords++
			s.metrics.RecordSeedingError("validation_error")
			continue
		}

		batch = append(batch, record)

		if len(batch) >= batchSize {
			if err := s.catalog.CreateVarietiesBatch(ctx, batch); err != nil {
				return nil, fmt.Errorf("failed to insert batch: %w", err)
			}
			result.SuccessfulRecords += len(batch)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.catalog.CreateVarietiesBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to insert final batch: %w", err)
		}
		result.SuccessfulRecords += len(batch)
	}

	return result, nil
}
