package filler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/services/matcher"
)

// ControlKind is the closed set of control shapes the filler knows
type ControlKind string

const (
	KindText     ControlKind = "text"
	KindTextarea ControlKind = "textarea"
	KindSelect   ControlKind = "select"
	KindCheckbox ControlKind = "checkbox"
	KindRadio    ControlKind = "radio"
)

// KindOf classifies a control. Any input that is not a checkbox or radio is
// filled as text.
func KindOf(el dom.Element) ControlKind {
	switch el.Tag() {
	case "select":
		return KindSelect
	case "textarea":
		return KindTextarea
	}
	switch dom.InputType(el) {
	case "checkbox":
		return KindCheckbox
	case "radio":
		return KindRadio
	}
	return KindText
}

// Strategy fills one kind of control. It reports whether the control was
// mutated; an error means the attempt broke part way.
type Strategy interface {
	AttemptFill(el dom.Element, value any, confidence domain.Confidence) (bool, error)
}

// Highlight classes, one per confidence tier
const (
	ClassHigh   = "autofill-high"
	ClassMedium = "autofill-medium"
	ClassLow    = "autofill-low"
)

// Annotation keys written on every filled control
const (
	DataOriginal   = "autofill-original"
	DataConfidence = "autofill-confidence"
)

func highlightClass(c domain.Confidence) string {
	switch c {
	case domain.ConfidenceHigh:
		return ClassHigh
	case domain.ConfidenceMedium:
		return ClassMedium
	default:
		return ClassLow
	}
}

// highlight replaces any previous tier class and records the value as filled
func highlight(el dom.Element, confidence domain.Confidence) error {
	if err := el.RemoveClass(ClassHigh, ClassMedium, ClassLow); err != nil {
		return err
	}
	if err := el.AddClass(highlightClass(confidence)); err != nil {
		return err
	}
	if err := el.SetData(DataOriginal, el.Value()); err != nil {
		return err
	}
	return el.SetData(DataConfidence, string(confidence))
}

// errMarking reports that the value was written but the fill markers were not
var errMarking = errors.New("marking filled control")

func mark(el dom.Element, confidence domain.Confidence) error {
	if err := highlight(el, confidence); err != nil {
		return fmt.Errorf("%w: %w", errMarking, err)
	}
	return nil
}

func dispatch(el dom.Element, events ...dom.EventType) error {
	for _, ev := range events {
		if err := el.Dispatch(ev); err != nil {
			return err
		}
	}
	return nil
}

// overlaps is a case-folded substring test in either direction. Empty
// strings never overlap, so placeholder options and unlabelled radios do
// not match every value.
func overlaps(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// textStrategy fills inputs and textareas, never over a user's entry
type textStrategy struct{}

func (textStrategy) AttemptFill(el dom.Element, value any, confidence domain.Confidence) (bool, error) {
	if strings.TrimSpace(el.Value()) != "" {
		return false, nil
	}
	if err := el.SetValue(domain.Stringify(value)); err != nil {
		return false, err
	}
	if err := dispatch(el, dom.EventInput, dom.EventChange); err != nil {
		return false, err
	}
	return true, mark(el, confidence)
}

// selectStrategy picks the first option overlapping the value, falling back
// to yes/no options for booleans
type selectStrategy struct{}

func (selectStrategy) AttemptFill(el dom.Element, value any, confidence domain.Confidence) (bool, error) {
	want := strings.ToLower(domain.Stringify(value))
	options := el.Options()

	chosen, found := "", false
	for _, opt := range options {
		text := strings.ToLower(strings.TrimSpace(opt.Text))
		val := strings.ToLower(opt.Value)
		if overlaps(text, want) || overlaps(val, want) || text == want || val == want {
			chosen, found = opt.Value, true
			break
		}
	}

	if b, isBool := value.(bool); !found && isBool {
		term := "no"
		if b {
			term = "yes"
		}
		for _, opt := range options {
			if strings.Contains(strings.ToLower(opt.Text), term) {
				chosen, found = opt.Value, true
				break
			}
		}
	}

	if !found {
		return false, nil
	}
	if err := el.SetValue(chosen); err != nil {
		return false, err
	}
	if err := el.Dispatch(dom.EventChange); err != nil {
		return false, err
	}
	return true, mark(el, confidence)
}

// checkboxStrategy sets the checked state from a truthy token
type checkboxStrategy struct{}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "yes" || v == "Yes"
	}
	return false
}

func (checkboxStrategy) AttemptFill(el dom.Element, value any, confidence domain.Confidence) (bool, error) {
	target := truthy(value)
	if el.Checked() == target {
		return false, nil
	}
	if err := el.SetChecked(target); err != nil {
		return false, err
	}
	if err := el.Dispatch(dom.EventChange); err != nil {
		return false, err
	}
	return true, mark(el, confidence)
}

// radioStrategy checks the radio whose value or label overlaps the value
type radioStrategy struct{}

func (radioStrategy) AttemptFill(el dom.Element, value any, confidence domain.Confidence) (bool, error) {
	want := strings.ToLower(domain.Stringify(value))
	own := el.Attr("value")
	if !el.HasAttr("value") {
		own = "on"
	}
	label := strings.ToLower(matcher.ExtractLabel(el))

	if !overlaps(strings.ToLower(own), want) && !overlaps(label, want) {
		return false, nil
	}
	if err := el.SetChecked(true); err != nil {
		return false, err
	}
	if err := el.Dispatch(dom.EventChange); err != nil {
		return false, err
	}
	return true, mark(el, confidence)
}

func defaultStrategies() map[ControlKind]Strategy {
	return map[ControlKind]Strategy{
		KindText:     textStrategy{},
		KindTextarea: textStrategy{},
		KindSelect:   selectStrategy{},
		KindCheckbox: checkboxStrategy{},
		KindRadio:    radioStrategy{},
	}
}
