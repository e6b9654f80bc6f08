package models

import (
	"fmt"
	"strings"
)

// NoVarietiesAvailableError is raised when every selection fallback tier is
// exhausted, including all priority-list entries. Terminal; never retried.
type NoVarietiesAvailableError struct {
	CropType  string
	Region    string
	Attempted []string
}

func (e *NoVarietiesAvailableError) Error() string {
	if len(e.Attempted) == 0 {
		return fmt.Sprintf("no varieties available for crop %q in region %q", e.CropType, e.Region)
	}
	return fmt.Sprintf("no varieties available for crop %q in region %q (attempted: %s)",
		e.CropType, e.Region, strings.Join(e.Attempted, ", "))
}

func (e *NoVarietiesAvailableError) IsTransient() bool {
	return false
}

// DatabaseError wraps a catalog query failure. Distinct from "no rows":
// safe to retry at the collaborator layer.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("catalog query failed (%s): %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

func (e *DatabaseError) IsTransient() bool {
	return true
}

// InvalidVarietyError indicates a caller-supplied variety name that does
// not exist in the catalog. User-correctable.
type InvalidVarietyError struct {
	CropType    string
	VarietyName string
}

func (e *InvalidVarietyError) Error() string {
	return fmt.Sprintf("unknown variety %q for crop %q; omit the variety field for automatic selection",
		e.VarietyName, e.CropType)
}

func (e *InvalidVarietyError) IsTransient() bool {
	return false
}

// LoadErrorKind classifies why a model artifact failed to load.
type LoadErrorKind string

const (
	LoadErrorMatrixVersion     LoadErrorKind = "matrix_version_mismatch"
	LoadErrorRegressionVersion LoadErrorKind = "regression_version_mismatch"
	LoadErrorInvalidStructure  LoadErrorKind = "invalid_structure"
	LoadErrorGeneric           LoadErrorKind = "deserialization_error"
)

// ModelLoadError records a single artifact load failure. Never fatal to the
// process: the registry records it and continues with the next artifact.
type ModelLoadError struct {
	ArtifactID string
	Kind       LoadErrorKind
	Message    string
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load model artifact %s (%s): %s", e.ArtifactID, e.Kind, e.Message)
}

func (e *ModelLoadError) IsTransient() bool {
	return false
}

// EnvironmentIncompatibleError means the compatibility guard rejected the
// runtime. All loading is skipped and the registry serves fallback entries.
type EnvironmentIncompatibleError struct {
	FailedChecks []string
}

func (e *EnvironmentIncompatibleError) Error() string {
	return fmt.Sprintf("runtime environment incompatible with persisted models: %s",
		strings.Join(e.FailedChecks, ", "))
}

func (e *EnvironmentIncompatibleError) IsTransient() bool {
	return false
}
