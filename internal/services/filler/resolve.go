package filler

import (
	"strings"

	"github.com/jobfill/jobfill/internal/domain"
)

// Resolver reads profile values by field path. Values are strings, booleans
// or float64s as found in the profile's JSON form; a missing leaf is nil.
type Resolver struct {
	profile *domain.Profile
	tree    map[string]any
}

// NewResolver prepares a profile for path lookups
func NewResolver(profile *domain.Profile) (*Resolver, error) {
	if profile == nil {
		return &Resolver{}, nil
	}
	tree, err := profile.Tree()
	if err != nil {
		return nil, err
	}
	return &Resolver{profile: profile, tree: tree}, nil
}

// Resolve returns the value at path, or nil
func (r *Resolver) Resolve(path domain.FieldPath) any {
	if path == domain.FieldNone || r.tree == nil {
		return nil
	}

	if path.IsComputed() {
		p := r.profile.Personal
		return strings.TrimSpace(p.FirstName + " " + p.LastName)
	}

	if base, index, leaf, ok := path.SplitIndexed(); ok {
		list, ok := lookup(r.tree, base).([]any)
		if !ok || index >= len(list) {
			return nil
		}
		entry, ok := list[index].(map[string]any)
		if !ok {
			return nil
		}
		return lookup(entry, leaf)
	}

	return lookup(r.tree, string(path))
}

// ResolveValue is a one-off Resolve
func ResolveValue(profile *domain.Profile, path domain.FieldPath) any {
	r, err := NewResolver(profile)
	if err != nil {
		return nil
	}
	return r.Resolve(path)
}

// lookup walks a dotted path; any missing key yields nil
func lookup(node map[string]any, dotted string) any {
	var cur any = node
	for _, key := range strings.Split(dotted, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}
