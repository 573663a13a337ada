package dom

import "strings"

// Predicate selects elements
type Predicate func(Element) bool

// Walk visits root and its descendants in document order until fn returns false
func Walk(root Element, fn func(Element) bool) bool {
	if root == nil {
		return true
	}
	if !fn(root) {
		return false
	}
	for _, child := range root.Children() {
		if !Walk(child, fn) {
			return false
		}
	}
	return true
}

// Find returns the first descendant of root (root excluded) matching pred
func Find(root Element, pred Predicate) Element {
	if root == nil {
		return nil
	}
	var found Element
	for _, child := range root.Children() {
		Walk(child, func(el Element) bool {
			if pred(el) {
				found = el
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every descendant of root (root excluded) matching pred
func FindAll(root Element, pred Predicate) []Element {
	if root == nil {
		return nil
	}
	var out []Element
	for _, child := range root.Children() {
		Walk(child, func(el Element) bool {
			if pred(el) {
				out = append(out, el)
			}
			return true
		})
	}
	return out
}

// Closest returns el or its nearest ancestor matching pred
func Closest(el Element, pred Predicate) Element {
	for cur := el; cur != nil; cur = cur.Parent() {
		if pred(cur) {
			return cur
		}
	}
	return nil
}

// ByID returns the element with the given id attribute
func ByID(root Element, id string) Element {
	if id == "" {
		return nil
	}
	if root != nil && root.Attr("id") == id {
		return root
	}
	return Find(root, AttrEquals("id", id))
}

// Tag matches any of the given tag names
func Tag(tags ...string) Predicate {
	return func(el Element) bool {
		tag := el.Tag()
		for _, t := range tags {
			if tag == t {
				return true
			}
		}
		return false
	}
}

// AttrEquals matches elements whose attribute equals value
func AttrEquals(name, value string) Predicate {
	return func(el Element) bool {
		return el.HasAttr(name) && el.Attr(name) == value
	}
}

// ClassContains matches elements whose class attribute contains substr
func ClassContains(substr string) Predicate {
	return func(el Element) bool {
		return strings.Contains(el.Attr("class"), substr)
	}
}

// HasClass matches elements carrying the class token
func HasClass(name string) Predicate {
	return func(el Element) bool {
		return el.HasClass(name)
	}
}

// Any matches when one of preds matches
func Any(preds ...Predicate) Predicate {
	return func(el Element) bool {
		for _, p := range preds {
			if p(el) {
				return true
			}
		}
		return false
	}
}

// InputType returns the lowercased type attribute of an input, "text" when absent
func InputType(el Element) string {
	t := strings.ToLower(strings.TrimSpace(el.Attr("type")))
	if t == "" && el.Tag() == "input" {
		return "text"
	}
	return t
}
