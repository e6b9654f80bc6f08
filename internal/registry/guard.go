// Package registry loads persisted regression model artifacts, validates
// them before use, and serves them read-only for the lifetime of the
// process. Loading runs exactly once at startup.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cropyield-platform/pkg/logging"
)

// Versions of the numeric runtime this build serves artifacts with.
const (
	runtimeMatrixVersion     = "2.1"
	runtimeRegressionVersion = "1.8"
)

// Minimum versions the persisted artifacts require.
const (
	minMatrixVersion     = "2.0"
	minRegressionVersion = "1.7"
)

// CompatibilityGuard validates the runtime's numeric library versions
// against the minimums persisted artifacts require, before any artifact is
// read. Pure besides logging.
type CompatibilityGuard struct {
	logger *logging.ContextLogger
}

// NewCompatibilityGuard creates a compatibility guard
func NewCompatibilityGuard(logger *logging.StructuredLogger) *CompatibilityGuard {
	return &CompatibilityGuard{
		logger: logger.WithFields(logging.Fields{"component": "compatibility_guard"}),
	}
}

type versionCheck struct {
	name      string
	installed string
	minimum   string
}

func (g *CompatibilityGuard) checks() []versionCheck {
	return []versionCheck{
		{name: "matrix", installed: runtimeMatrixVersion, minimum: minMatrixVersion},
		{name: "regression", installed: runtimeRegressionVersion, minimum: minRegressionVersion},
	}
}

// Check returns true only when every library meets its minimum version.
// Each check's pass/fail is logged individually.
func (g *CompatibilityGuard) Check(ctx context.Context) bool {
	compatible := true

	for _, c := range g.checks() {
		ok, err := atLeast(c.installed, c.minimum)
		if err != nil {
			g.logger.Error(ctx, "[COMPAT_CHECK_ERROR] Unparseable library version", logging.Fields{
				"library":   c.name,
				"installed": c.installed,
				"minimum":   c.minimum,
			}, err)
			compatible = false
			continue
		}

		if !ok {
			g.logger.Error(ctx, "[COMPAT_CHECK_FAIL] Library below required minimum", logging.Fields{
				"library":   c.name,
				"installed": c.installed,
				"minimum":   c.minimum,
			}, nil)
			compatible = false
			continue
		}

		g.logger.Info(ctx, "[COMPAT_CHECK_PASS] Library version compatible", logging.Fields{
			"library":   c.name,
			"installed": c.installed,
			"minimum":   c.minimum,
		})
	}

	return compatible
}

// FailedChecks returns the names of libraries that do not meet their
// minimum, for error reporting.
func (g *CompatibilityGuard) FailedChecks() []string {
	var failed []string
	for _, c := range g.checks() {
		ok, err := atLeast(c.installed, c.minimum)
		if err != nil || !ok {
			failed = append(failed, fmt.Sprintf("%s %s < %s", c.name, c.installed, c.minimum))
		}
	}
	return failed
}

// LibVersions returns the runtime library versions for health introspection.
func (g *CompatibilityGuard) LibVersions() map[string]string {
	versions := make(map[string]string)
	for _, c := range g.checks() {
		versions[c.name] = c.installed
	}
	return versions
}

// atLeast compares two major.minor version strings.
func atLeast(installed, minimum string) (bool, error) {
	instMajor, instMinor, err := parseMajorMinor(installed)
	if err != nil {
		return false, err
	}

	minMajor, minMinor, err := parseMajorMinor(minimum)
	if err != nil {
		return false, err
	}

	if instMajor != minMajor {
		return instMajor > minMajor, nil
	}
	return instMinor >= minMinor, nil
}

func parseMajorMinor(version string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(version), ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("invalid version %q: expected major.minor", version)
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid major version in %q", version)
	}

	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minor version in %q", version)
	}

	return major, minor, nil
}
