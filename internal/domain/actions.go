package domain

import "encoding/json"

// Action names understood by the background service and the page agent
type Action string

const (
	// Background actions
	ActionGetProfile         Action = "getProfile"
	ActionGetLearnedPatterns Action = "getLearnedPatterns"
	ActionSaveLearnedPattern Action = "saveLearnedPattern"
	ActionFillForm           Action = "fillForm"
	ActionUpdateProfile      Action = "updateProfile"

	// Page agent actions
	ActionFill            Action = "fill"
	ActionSaveCorrections Action = "saveCorrections"
	ActionGetStatus       Action = "getStatus"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionGetProfile, ActionGetLearnedPatterns, ActionSaveLearnedPattern,
		ActionFillForm, ActionUpdateProfile, ActionFill, ActionSaveCorrections, ActionGetStatus:
		return true
	}
	return false
}

// MissingProfileMessage is shown when a fill is requested before a profile exists
const MissingProfileMessage = "No profile data found. Please set up your profile."

// ProfileResponse answers getProfile. Profile is nil when none is stored.
type ProfileResponse struct {
	Profile *Profile `json:"profile"`
}

// LearnedPatternsResponse answers getLearnedPatterns
type LearnedPatternsResponse struct {
	LearnedPatterns LearnedPatterns `json:"learnedPatterns"`
}

// UpdateProfileRequest carries a partial profile keyed by top-level section
type UpdateProfileRequest map[string]json.RawMessage

// AckResponse acknowledges a write
type AckResponse struct {
	Success bool `json:"success"`
}

// FillResponse answers fill and fillForm. A missing profile is reported here
// with Success false rather than as a transport error.
type FillResponse struct {
	Success bool        `json:"success"`
	Results FillResults `json:"results"`
	Site    Site        `json:"site,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SaveCorrectionsResponse answers saveCorrections
type SaveCorrectionsResponse struct {
	Saved int `json:"saved"`
}

// StatusResponse answers getStatus
type StatusResponse struct {
	Site        Site `json:"site"`
	Supported   bool `json:"supported"`
	FieldsFound int  `json:"fieldsFound"`
}
