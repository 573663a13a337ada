package domain

import "strings"

// Common types used across the matching, filling and learning code

// Confidence is the certainty tier of a label to field match
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// MatchSource records where a match came from
type MatchSource string

const (
	SourceLearned MatchSource = "learned"
	SourcePattern MatchSource = "pattern"
	SourceNone    MatchSource = "none"
)

func (s MatchSource) IsValid() bool {
	switch s {
	case SourceLearned, SourcePattern, SourceNone:
		return true
	}
	return false
}

// Site identifies an applicant tracking system
type Site string

const (
	SiteWorkday    Site = "workday"
	SiteGreenhouse Site = "greenhouse"
	SiteLever      Site = "lever"
	SiteUnknown    Site = "unknown"
)

func (s Site) IsValid() bool {
	switch s {
	case SiteWorkday, SiteGreenhouse, SiteLever, SiteUnknown:
		return true
	}
	return false
}

// Supported reports whether the site is one of the recognised systems
func (s Site) Supported() bool {
	return s.IsValid() && s != SiteUnknown
}

// NormalizeLabel lowercases and trims a label. Learned patterns are keyed by
// the normalized form on both the read and the write side.
func NormalizeLabel(label string) string {
	return strings.TrimSpace(strings.ToLower(label))
}
