package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
}

func TestSeedDirectory(t *testing.T) {
	dir := t.TempDir()

	writeCSV(t, dir, "wheat.csv",
		"crop_type,variety_name,region_prevalence,yield_potential,maturity_days,drought_tolerance,disease_resistance\n"+
			"Wheat,HD 3086,Punjab,6.5,145,Medium,High\n"+
			"Wheat,PBW 725,Punjab,7.0,150,Medium,Medium\n"+
			"Wheat,,Punjab,5.0,140,Low,Low\n"+ // missing variety name
			"Wheat,C 306,Rajasthan,bad,135,High,Low\n") // bad yield

	writeCSV(t, dir, "rice.csv",
		"crop_type,variety_name,region_prevalence,yield_potential,maturity_days,drought_tolerance,disease_resistance\n"+
			"Rice,IR-64,Bihar,5.5,125,Low,Medium\n")

	catalog := &fakeCatalog{}
	service := NewSeedingService(catalog, testLogger(), testMetrics)

	result, err := service.SeedDirectory(context.Background(), dir, 2)
	if err != nil {
		t.Fatalf("SeedDirectory() error = %v", err)
	}

	if result.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d, want 2", result.TotalFiles)
	}
	if result.TotalRecords != 5 {
		t.Errorf("TotalRecords = %d, want 5", result.TotalRecords)
	}
	if result.SuccessfulRecords != 3 {
		t.Errorf("SuccessfulRecords = %d, want 3", result.SuccessfulRecords)
	}
	if result.FailedRecords != 2 {
		t.Errorf("FailedRecords = %d, want 2", result.FailedRecords)
	}
	if len(catalog.records) != 3 {
		t.Errorf("catalog holds %d records, want 3", len(catalog.records))
	}
}

func TestSeedDirectory_NoFiles(t *testing.T) {
	service := NewSeedingService(&fakeCatalog{}, testLogger(), testMetrics)

	if _, err := service.SeedDirectory(context.Background(), t.TempDir(), 100); err == nil {
		t.Fatal("SeedDirectory() expected error for an empty directory")
	}
}

func TestSeedDirectory_BatchBoundary(t *testing.T) {
	dir := t.TempDir()

	writeCSV(t, dir, "maize.csv",
		"crop_type,variety_name,region_prevalence,yield_potential,maturity_days,drought_tolerance,disease_resistance\n"+
			"Maize,DHM 117,All North India,6.0,95,Medium,Medium\n"+
			"Maize,HQPM 1,Haryana,5.8,92,Medium,High\n"+
			"Maize,Baby Corn Hybrid,Punjab,4.5,60,Low,Low\n")

	catalog := &fakeCatalog{}
	service := NewSeedingService(catalog, testLogger(), testMetrics)

	// Batch size 3 exactly matches the record count; the final flush must
	// not double-insert.
	result, err := service.SeedDirectory(context.Background(), dir, 3)
	if err != nil {
		t.Fatalf("SeedDirectory() error = %v", err)
	}

	if result.SuccessfulRecords != 3 {
		t.Errorf("SuccessfulRecords = %d, want 3", result.SuccessfulRecords)
	}
	if len(catalog.records) != 3 {
		t.Errorf("catalog holds %d records, want 3", len(catalog.records))
	}
}
