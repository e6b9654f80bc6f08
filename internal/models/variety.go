package models

import (
	"strconv"
	"strings"
	"time"
)

// VarietyRecord represents a persisted cultivar from the variety catalog.
// Records are immutable once seeded; (crop_type, variety_name) is unique.
type VarietyRecord struct {
	ID                int64     `json:"id" db:"id"`
	CropType          string    `json:"crop_type" db:"crop_type"`
	VarietyName       string    `json:"variety_name" db:"variety_name"`
	RegionPrevalence  string    `json:"region_prevalence" db:"region_prevalence"`
	YieldPotential    float64   `json:"yield_potential" db:"yield_potential"` // t/ha
	MaturityDays      int       `json:"maturity_days" db:"maturity_days"`
	DroughtTolerance  string    `json:"drought_tolerance" db:"drought_tolerance"`
	DiseaseResistance string    `json:"disease_resistance" db:"disease_resistance"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// RawVarietyRecord represents a single row from a catalog seed CSV file.
// Used during seeding only.
type RawVarietyRecord struct {
	CropType          string
	VarietyName       string
	RegionPrevalence  string
	YieldPotential    string
	MaturityDays      string
	DroughtTolerance  string
	DiseaseResistance string
}

// ToRecord converts a RawVarietyRecord into a VarietyRecord, validating
// the numeric fields and required identifiers.
func (r *RawVarietyRecord) ToRecord() (*VarietyRecord, error) {
	cropType := strings.TrimSpace(r.CropType)
	if cropType == "" {
		return nil, &ValidationError{
			Field:   "crop_type",
			Value:   r.CropType,
			Message: "crop_type is required",
		}
	}

	varietyName := strings.TrimSpace(r.VarietyName)
	if varietyName == "" {
		return nil, &ValidationError{
			Field:   "variety_name",
			Value:   r.VarietyName,
			Message: "variety_name is required",
		}
	}

	yieldPotential, err := strconv.ParseFloat(strings.TrimSpace(r.YieldPotential), 64)
	if err != nil || yieldPotential < 0 {
		return nil, &ValidationError{
			Field:   "yield_potential",
			Value:   r.YieldPotential,
			Message: "yield_potential must be a non-negative number (t/ha)",
		}
	}

	maturityDays, err := strconv.Atoi(strings.TrimSpace(r.MaturityDays))
	if err != nil || maturityDays <= 0 {
		return nil, &ValidationError{
			Field:   "maturity_days",
			Value:   r.MaturityDays,
			Message: "maturity_days must be a positive integer",
		}
	}

	return &VarietyRecord{
		CropType:          cropType,
		VarietyName:       varietyName,
		RegionPrevalence:  strings.TrimSpace(r.RegionPrevalence),
		YieldPotential:    yieldPotential,
		MaturityDays:      maturityDays,
		DroughtTolerance:  strings.TrimSpace(r.DroughtTolerance),
		DiseaseResistance: strings.TrimSpace(r.DiseaseResistance),
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
