package models

// SelectionReason identifies which fallback tier produced a default variety.
// The set is closed; each reason implies which optional fields are present.
type SelectionReason string

const (
	// ReasonRegionalHighestYield: the highest yield_potential variety grown
	// in the resolved region.
	ReasonRegionalHighestYield SelectionReason = "regional_highest_yield"

	// ReasonRegionalFallback: nothing grown in the resolved region, selected
	// from the "All North India" pool instead. OriginalRegion is set.
	ReasonRegionalFallback SelectionReason = "regional_fallback"

	// ReasonGlobalDefault: nothing grown anywhere, selected from the fixed
	// per-crop priority list. Note is set.
	ReasonGlobalDefault SelectionReason = "global_default"
)

// SelectionResult explains how a default variety was chosen. Produced fresh
// per request, never persisted. VarietyName is always validated against the
// catalog before the result is returned.
type SelectionResult struct {
	VarietyName    string          `json:"variety_name"`
	Reason         SelectionReason `json:"reason"`
	Region         string          `json:"region"`
	YieldPotential *float64        `json:"yield_potential,omitempty"`
	Alternatives   []string        `json:"alternatives,omitempty"`
	OriginalRegion string          `json:"original_region,omitempty"`
	Note           string          `json:"note,omitempty"`
}
