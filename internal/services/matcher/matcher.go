// Package matcher discovers form controls on a page and maps each one to a
// profile field from its label.
package matcher

import (
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
)

// Match is the outcome of matching one label
type Match struct {
	Field      domain.FieldPath   `json:"field"`
	Confidence domain.Confidence  `json:"confidence"`
	Source     domain.MatchSource `json:"source"`
}

// Matched reports whether a field was found
func (m Match) Matched() bool {
	return m.Field != domain.FieldNone
}

// FieldDescriptor is a discovered form control
type FieldDescriptor struct {
	Element   dom.Element `json:"-"`
	LabelText string      `json:"labelText"`
	Type      string      `json:"type"`
	InputType string      `json:"inputType,omitempty"`
	Name      string      `json:"name,omitempty"`
	ID        string      `json:"id,omitempty"`
}

// MatchedField is a descriptor with its match. It lives for one fill pass.
type MatchedField struct {
	FieldDescriptor
	Match
}

// Matcher resolves labels for one site
type Matcher struct {
	site   domain.Site
	logger *zap.Logger
}

// New creates a matcher scoped to site
func New(site domain.Site, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{site: site, logger: logger}
}

// ForDocument creates a matcher for the site the document is served from
func ForDocument(doc dom.Document, logger *zap.Logger) *Matcher {
	return New(DetectSite(doc.Host()), logger)
}

// Site returns the site the matcher is scoped to
func (m *Matcher) Site() domain.Site {
	return m.site
}

// MatchLabel resolves a composite label. A learned pattern for the site wins
// outright; otherwise the first static row that matches decides, with high
// confidence when the match covers more than half of the label.
func (m *Matcher) MatchLabel(labelText string, learned domain.LearnedPatterns) Match {
	normalized := domain.NormalizeLabel(labelText)

	if field, ok := learned.Lookup(m.site, normalized); ok {
		return Match{Field: field, Confidence: domain.ConfidenceHigh, Source: domain.SourceLearned}
	}

	for _, row := range staticMappings {
		loc := row.locate(normalized)
		if loc == nil {
			continue
		}
		confidence := domain.ConfidenceMedium
		matched := utf8.RuneCountInString(normalized[loc[0]:loc[1]])
		if float64(matched) > float64(utf8.RuneCountInString(normalized))*0.5 {
			confidence = domain.ConfidenceHigh
		}
		return Match{Field: row.field, Confidence: confidence, Source: domain.SourcePattern}
	}

	return Match{Field: domain.FieldNone, Confidence: domain.ConfidenceLow, Source: domain.SourceNone}
}

var controlTags = dom.Tag("input", "select", "textarea")

var excludedInputTypes = map[string]bool{
	"hidden": true, "submit": true, "button": true, "reset": true,
}

// FindFields lists the fillable controls of doc in document order. Controls
// that are not rendered are skipped unless an ancestor is explicitly marked
// aria-hidden="false".
func (m *Matcher) FindFields(doc dom.Document) []FieldDescriptor {
	root := doc.Root()
	if root == nil {
		return nil
	}

	var fields []FieldDescriptor
	for _, el := range dom.FindAll(root, controlTags) {
		if el.Tag() == "input" && excludedInputTypes[dom.InputType(el)] {
			continue
		}
		if !el.Visible() && dom.Closest(el, dom.AttrEquals("aria-hidden", "false")) == nil {
			continue
		}
		fields = append(fields, FieldDescriptor{
			Element:   el,
			LabelText: ExtractLabel(el),
			Type:      el.Tag(),
			InputType: controlType(el),
			Name:      el.Attr("name"),
			ID:        el.Attr("id"),
		})
	}
	return fields
}

// MatchAllFields finds the controls of doc and matches each label. It does
// not touch the page.
func (m *Matcher) MatchAllFields(doc dom.Document, learned domain.LearnedPatterns) []MatchedField {
	fields := m.FindFields(doc)
	out := make([]MatchedField, 0, len(fields))
	sources := map[domain.MatchSource]int{}
	for _, f := range fields {
		match := m.MatchLabel(f.LabelText, learned)
		sources[match.Source]++
		out = append(out, MatchedField{FieldDescriptor: f, Match: match})
	}
	m.logger.Debug("matched fields",
		zap.String("site", string(m.site)),
		zap.Int("fields", len(out)),
		zap.Int("learned", sources[domain.SourceLearned]),
		zap.Int("pattern", sources[domain.SourcePattern]),
		zap.Int("unmatched", sources[domain.SourceNone]),
	)
	return out
}

// controlType mirrors the control's type property: the input type, or
// select-one/select-multiple/textarea for the other controls.
func controlType(el dom.Element) string {
	switch el.Tag() {
	case "select":
		if el.HasAttr("multiple") {
			return "select-multiple"
		}
		return "select-one"
	case "textarea":
		return "textarea"
	}
	return dom.InputType(el)
}
