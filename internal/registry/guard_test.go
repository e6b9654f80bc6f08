package registry

import (
	"context"
	"errors"
	"testing"

	"cropyield-platform/internal/models"
)

func TestCompatibilityGuard_Check(t *testing.T) {
	guard := NewCompatibilityGuard(testLogger())

	// Built-in runtime versions meet their minimums.
	if !guard.Check(context.Background()) {
		t.Error("Check() = false, want true for built-in versions")
	}
	if failed := guard.FailedChecks(); len(failed) != 0 {
		t.Errorf("FailedChecks() = %v, want empty", failed)
	}
}

func TestCompatibilityGuard_LibVersions(t *testing.T) {
	guard := NewCompatibilityGuard(testLogger())

	versions := guard.LibVersions()
	if versions["matrix"] != runtimeMatrixVersion {
		t.Errorf("matrix version = %q, want %q", versions["matrix"], runtimeMatrixVersion)
	}
	if versions["regression"] != runtimeRegressionVersion {
		t.Errorf("regression version = %q, want %q", versions["regression"], runtimeRegressionVersion)
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		installed string
		minimum   string
		want      bool
		wantErr   bool
	}{
		{"2.1", "2.0", true, false},
		{"2.0", "2.0", true, false},
		{"1.9", "2.0", false, false},
		{"3.0", "2.9", true, false},
		{"2.0", "1.19", true, false},
		{"1.8", "1.7", true, false},
		{"1.6", "1.7", false, false},
		{"2.1.4", "2.0", true, false},
		{"garbage", "2.0", false, true},
		{"2", "2.0", false, true},
	}

	for _, tt := range tests {
		got, err := atLeast(tt.installed, tt.minimum)
		if (err != nil) != tt.wantErr {
			t.Errorf("atLeast(%q, %q) error = %v, wantErr %v", tt.installed, tt.minimum, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("atLeast(%q, %q) = %v, want %v", tt.installed, tt.minimum, got, tt.want)
		}
	}
}

func TestClassifyLoadError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.LoadErrorKind
	}{
		{
			name: "matrix schema signature",
			err:  errors.New("matrix schema 3.0 newer than supported runtime 2.1"),
			want: models.LoadErrorMatrixVersion,
		},
		{
			name: "ndarray signature",
			err:  errors.New("cannot decode ndarray payload"),
			want: models.LoadErrorMatrixVersion,
		},
		{
			name: "regression schema signature",
			err:  errors.New("regression schema 2.5 newer than supported runtime 1.8"),
			want: models.LoadErrorRegressionVersion,
		},
		{
			name: "estimator version signature",
			err:  errors.New("unsupported estimator version in payload"),
			want: models.LoadErrorRegressionVersion,
		},
		{
			name: "mixed case signature",
			err:  errors.New("Matrix Schema incompatibility"),
			want: models.LoadErrorMatrixVersion,
		},
		{
			name: "unknown failure",
			err:  errors.New("unexpected end of JSON input"),
			want: models.LoadErrorGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyLoadError(tt.err); got != tt.want {
				t.Errorf("classifyLoadError() = %q, want %q", got, tt.want)
			}
		})
	}
}
