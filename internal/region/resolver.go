// Package region maps free-text location names to canonical administrative
// regions used as catalog and model-registry keys.
package region

import (
	"context"
	"strings"
	"unicode"

	"cropyield-platform/pkg/logging"
)

// AllNorthIndia is the catch-all region. Unmapped locations resolve here;
// it is also the second selection tier's query region.
const AllNorthIndia = "All North India"

// Resolver resolves location names against a static, case-insensitive
// table. The table is built once at construction and never mutated, so
// lookups are safe for concurrent use without locking.
type Resolver struct {
	table  map[string]string
	logger *logging.StructuredLogger
}

// NewResolver creates a resolver with the built-in location table.
func NewResolver(logger *logging.StructuredLogger) *Resolver {
	return &Resolver{
		table:  buildTable(),
		logger: logger,
	}
}

// Resolve maps a location name to a region. Total: any input, including
// empty or garbage, resolves to a region. Unmapped locations resolve to
// AllNorthIndia with a warning; that is an intentional lossy default, not
// an error.
func (r *Resolver) Resolve(ctx context.Context, location string) string {
	key := sanitize(location)
	if key == "" {
		key = "unknown"
	}

	if region, ok := r.table[key]; ok {
		return region
	}

	r.logger.Warn(ctx, "[REGION_UNMAPPED] Location not in region table", logging.Fields{
		"location":  location,
		"sanitized": key,
		"resolved":  AllNorthIndia,
	})

	return AllNorthIndia
}

// sanitize strips everything that is not alphanumeric or space, lowercases,
// and normalizes whitespace. Note this also strips legitimate apostrophes
// and hyphens in place names; the lookup table only carries keys that
// survive this.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// buildTable returns the static location table: cities map to their state,
// state names pass through, regional aliases map to AllNorthIndia.
func buildTable() map[string]string {
	table := map[string]string{
		// Cities
		"chandigarh": "Punjab",
		"ludhiana":   "Punjab",
		"amritsar":   "Punjab",
		"jalandhar":  "Punjab",
		"karnal":     "Haryana",
		"hisar":      "Haryana",
		"gurgaon":    "Haryana",
		"rohtak":     "Haryana",
		"lucknow":    "Uttar Pradesh",
		"kanpur":     "Uttar Pradesh",
		"varanasi":   "Uttar Pradesh",
		"meerut":     "Uttar Pradesh",
		"agra":       "Uttar Pradesh",
		"bhopal":     "Madhya Pradesh",
		"indore":     "Madhya Pradesh",
		"gwalior":    "Madhya Pradesh",
		"jabalpur":   "Madhya Pradesh",
		"jaipur":     "Rajasthan",
		"jodhpur":    "Rajasthan",
		"kota":       "Rajasthan",
		"bikaner":    "Rajasthan",
		"patna":      "Bihar",
		"gaya":       "Bihar",
		"muzaffarpur": "Bihar",
		"dehradun":   "Uttarakhand",
		"haridwar":   "Uttarakhand",
		"shimla":     "Himachal Pradesh",
		"delhi":      "Delhi",
		"new delhi":  "Delhi",

		// Regional aliases
		"north india":          AllNorthIndia,
		"north india regional": AllNorthIndia,
		"all north india":      AllNorthIndia,
	}

	// States pass through to themselves.
	states := []string{
		"Punjab",
		"Haryana",
		"Uttar Pradesh",
		"Madhya Pradesh",
		"Rajasthan",
		"Bihar",
		"Uttarakhand",
		"Himachal Pradesh",
		"Delhi",
	}
	for _, state := range states {
		table[strings.ToLower(state)] = state
	}

	return table
}
