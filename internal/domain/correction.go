package domain

// Correction is a user edit to a value the filler wrote. It is consumed by
// learning and never stored.
type Correction struct {
	Site           Site       `json:"site"`
	LabelText      string     `json:"labelText"`
	OriginalField  FieldPath  `json:"originalField"`
	OriginalValue  string     `json:"originalValue"`
	CorrectedValue string     `json:"correctedValue"`
	Confidence     Confidence `json:"confidence"`
}

// FillResults counts the outcome of one fill pass. Uncertain is a sub-count
// of Filled.
type FillResults struct {
	Filled    int `json:"filled"`
	Skipped   int `json:"skipped"`
	Uncertain int `json:"uncertain"`
	Failed    int `json:"failed"`
}

// Total returns the number of fields considered
func (r FillResults) Total() int {
	return r.Filled + r.Skipped + r.Failed
}
