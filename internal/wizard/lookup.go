package wizard

// Confidence — уровень доверия к результату подбора детали.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// GlassPart — кандидат детали из каталога NAGS/AUTOBOLT.
type GlassPart struct {
	NAGSPartNumber      string   `json:"nags_part_number"`
	FullPartNumber      string   `json:"full_part_number,omitempty"`
	PrefixCD            string   `json:"prefix_cd,omitempty"`
	NAGSListPrice       string   `json:"nags_list_price,omitempty"`
	CalibrationType     string   `json:"calibration_type,omitempty"`
	CalibrationRequired bool     `json:"calibration_required"`
	Features            []string `json:"features,omitempty"`
	Source              string   `json:"source,omitempty"`
}

// VehicleLookupResult — ответ внешнего сервиса идентификации автомобиля.
// Кэшируется в сессии как есть; движок реагирует только на число кандидатов
// и флаги review.
type VehicleLookupResult struct {
	Source string `json:"source"`

	VIN       string `json:"vin"`
	Year      int    `json:"year"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	BodyStyle string `json:"body_style,omitempty"`
	Trim      string `json:"trim,omitempty"`

	Parts []GlassPart `json:"parts"`

	NeedsPartSelection     bool `json:"needs_part_selection"`
	NeedsCalibrationReview bool `json:"needs_calibration_review"`
	NeedsManualReview      bool `json:"needs_manual_review"`

	Confidence   Confidence `json:"confidence"`
	ReviewReason string     `json:"review_reason,omitempty"`
}
