package matcher

import (
	"strings"

	"github.com/jobfill/jobfill/internal/dom"
)

// LabelSeparator joins the signals of a composite label
const LabelSeparator = " | "

var nameSeparators = strings.NewReplacer("_", " ", "-", " ")

// containerLabel finds label-like descendants of a field's container
var containerLabel = dom.Any(
	dom.Tag("label", "legend", "h3", "h4"),
	dom.HasClass("label"),
	dom.ClassContains("label"),
)

// ExtractLabel builds the composite label of a form control from every
// textual signal around it, in a fixed order: bound label, wrapping label,
// aria-label, aria-labelledby target, placeholder, name attribute, preceding
// label/span sibling and the first label-like element of the enclosing
// container. Empty signals are dropped.
func ExtractLabel(el dom.Element) string {
	if el == nil {
		return ""
	}
	root := rootOf(el)
	var labels []string

	if id := el.Attr("id"); id != "" {
		bound := dom.Find(root, func(e dom.Element) bool {
			return e.Tag() == "label" && e.Attr("for") == id
		})
		if bound != nil {
			labels = append(labels, strings.TrimSpace(bound.TextContent()))
		}
	}

	if wrapping := dom.Closest(el, dom.Tag("label")); wrapping != nil {
		labels = append(labels, strings.TrimSpace(wrapping.TextContent()))
	}

	if aria := el.Attr("aria-label"); aria != "" {
		labels = append(labels, aria)
	}

	if ref := el.Attr("aria-labelledby"); ref != "" {
		if target := dom.ByID(root, ref); target != nil {
			labels = append(labels, strings.TrimSpace(target.TextContent()))
		}
	}

	if tag := el.Tag(); tag == "input" || tag == "textarea" {
		if ph := el.Attr("placeholder"); ph != "" {
			labels = append(labels, ph)
		}
	}

	if name := el.Attr("name"); name != "" {
		labels = append(labels, nameSeparators.Replace(name))
	}

	if prev := el.PrevElementSibling(); prev != nil && (prev.Tag() == "label" || prev.Tag() == "span") {
		labels = append(labels, strings.TrimSpace(prev.TextContent()))
	}

	if parent := dom.Closest(el, dom.Tag("div", "fieldset", "section")); parent != nil {
		if labelLike := dom.Find(parent, containerLabel); labelLike != nil {
			text := strings.TrimSpace(labelLike.TextContent())
			if !contains(labels, text) {
				labels = append(labels, text)
			}
		}
	}

	out := labels[:0]
	for _, l := range labels {
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, LabelSeparator)
}

func rootOf(el dom.Element) dom.Element {
	root := el
	for p := el.Parent(); p != nil; p = p.Parent() {
		root = p
	}
	return root
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
