package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"cropyield-platform/internal/config"
	"cropyield-platform/internal/repository"
	"cropyield-platform/internal/services"
	"cropyield-platform/pkg/database"
	"cropyield-platform/pkg/logging"
	"cropyield-platform/pkg/metrics"
)

func main() {
	// Parse command-line flags
	dataDir := flag.String("data-dir", "./catalog_data", "Directory containing variety catalog CSV files")
	batchSize := flag.Int("batch-size", 500, "Number of records to insert in each batch")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logLevel := logging.InfoLevel
	if cfg.Logging.Level == "debug" {
		logLevel = logging.DebugLevel
	}

	logger := logging.NewStructuredLogger("catalog-seeder", "1.0.0", logLevel)

	ctx := context.Background()
	logger.Info(ctx, "[SEEDER_START] Starting variety catalog seeding", logging.Fields{
		"version":    "1.0.0",
		"data_dir":   *dataDir,
		"batch_size": *batchSize,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("cropyield_seeder")

	// Initialize database
	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[SEEDER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository and service
	catalog := repository.NewVarietyRepository(db, logger, metricsCollector)
	seedingService := services.NewSeedingService(catalog, logger, metricsCollector)

	// Seed data
	result, err := seedingService.SeedDirectory(ctx, *dataDir, *batchSize)
	if err != nil {
		logger.Fatal(ctx, "[SEEDING_ERROR] Seeding failed", logging.Fields{
			"error": err.Error(),
		}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("SEEDING COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Files:        %d\n", result.TotalFiles)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if result.Duration.Seconds() > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/result.Duration.Seconds())
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}

	logger.Info(ctx, "[SEEDER_COMPLETE] Seeding completed successfully", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})
}
