package models

// PredictionRequest is the inbound yield prediction request. Variety is
// optional: when absent the resolution engine fills it in.
type PredictionRequest struct {
	CropType     string  `json:"crop_type"`
	Location     string  `json:"location"`
	Variety      string  `json:"variety,omitempty"`
	AreaHectares float64 `json:"area_hectares,omitempty"`
	SowingDate   string  `json:"sowing_date,omitempty"`
}

// PredictionResponse is the assembled prediction. The response is
// transparent about assumptions: variety_assumed is always present, and
// factors.default_variety_selection appears only when the variety was
// auto-selected.
type PredictionResponse struct {
	Prediction Prediction `json:"prediction"`
	Factors    Factors    `json:"factors"`
}

// Prediction carries the numeric result and the model provenance.
type Prediction struct {
	YieldTonsPerHectare float64  `json:"yield_tons_per_hectare"`
	TotalYieldTons      *float64 `json:"total_yield_tons,omitempty"`
	VarietyUsed         string   `json:"variety_used"`
	VarietyAssumed      bool     `json:"variety_assumed"`
	ModelLocation       string   `json:"model_location"`
	Algorithm           string   `json:"algorithm"`
	ModelFallback       bool     `json:"model_fallback,omitempty"`
}

// Factors explains the inputs the orchestrator decided on. The selection
// block is a pointer so it is absent, not null, when the variety was
// supplied by the caller.
type Factors struct {
	DefaultVarietySelection *SelectionResult `json:"default_variety_selection,omitempty"`
}
