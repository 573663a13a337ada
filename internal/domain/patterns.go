package domain

// LearnedPatterns maps a site to the label -> field associations learned on it.
// Labels are stored normalized (see NormalizeLabel).
type LearnedPatterns map[Site]map[string]FieldPath

// Lookup returns the learned field for label on site
func (lp LearnedPatterns) Lookup(site Site, label string) (FieldPath, bool) {
	bySite, ok := lp[site]
	if !ok {
		return FieldNone, false
	}
	field, ok := bySite[NormalizeLabel(label)]
	if !ok || field == FieldNone {
		return FieldNone, false
	}
	return field, true
}

// Set records an association, replacing any earlier one for the same label
func (lp LearnedPatterns) Set(site Site, label string, field FieldPath) {
	bySite, ok := lp[site]
	if !ok {
		bySite = make(map[string]FieldPath)
		lp[site] = bySite
	}
	bySite[NormalizeLabel(label)] = field
}

// Count returns the number of learned associations across all sites
func (lp LearnedPatterns) Count() int {
	n := 0
	for _, bySite := range lp {
		n += len(bySite)
	}
	return n
}

// LearnedPattern is a single (site, label, field) association
type LearnedPattern struct {
	Site         Site      `json:"site"`
	LabelPattern string    `json:"labelPattern"`
	ProfileField FieldPath `json:"profileField"`
}

// Validate checks a pattern before it is persisted
func (p LearnedPattern) Validate() error {
	if p.Site == "" {
		return ValidationError("site", "site is required")
	}
	if NormalizeLabel(p.LabelPattern) == "" {
		return ValidationError("labelPattern", "label pattern is required")
	}
	if !p.ProfileField.IsValid() {
		return ValidationError("profileField", "unknown profile field: "+string(p.ProfileField))
	}
	return nil
}
