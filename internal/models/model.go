package models

// DetectionSource identifies which channel produced a score candidate.
type DetectionSource string

const (
	SourceMessage DetectionSource = "message"
	SourceDOMScan DetectionSource = "dom_scan"
	SourceURLScan DetectionSource = "url_scan"
	SourceOCR     DetectionSource = "ocr_screenshot"
	SourceManual  DetectionSource = "manual"
)

// WireMethod is the detection_method value sent to the score backend.
// The backend uses the short form for OCR submissions.
func (s DetectionSource) WireMethod() string {
	if s == SourceOCR {
		return "ocr"
	}
	return string(s)
}

// ExerciseModel is one embeddable roleplay exercise. EmbedMarkup is
// third-party HTML and is never parsed, only handed to the viewer as-is.
type ExerciseModel struct {
	ID                  int    `json:"id"`
	Name                string `json:"name"`
	EmbedMarkup         string `json:"iframe_code"`
	CategoryID          int    `json:"category"`
	MinScoreToPass      int    `json:"min_score_to_pass"`
	MinAttemptsRequired int    `json:"min_attempts_required"`
}

// Category groups exercise models. Default categories are auto-assigned
// to every user; others are assigned per user.
type Category struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	IsDefault bool            `json:"is_default"`
	UserEmail string          `json:"user_email,omitempty"`
	Models    []ExerciseModel `json:"models"`
}

// PortalUser is the identity the backend resolves from an email. The
// viewer has no auth token; email is the only identity carrier.
type PortalUser struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	LocationID int    `json:"location_id"`
}

// UserAccess is the response of the user-access lookup: the resolved
// user plus the categories (with models) assigned to them.
type UserAccess struct {
	User       PortalUser `json:"user"`
	Categories []Category `json:"categories"`
}
