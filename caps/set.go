package caps

import "strings"

// Set is an ordered list of alternative caps, earlier entries preferred.
// A nil Set means "no restriction" where a filter is expected.
type Set []*Caps

// ParseSet parses each string into caps.
func ParseSet(strs ...string) (Set, error) {
	out := make(Set, 0, len(strs))
	for _, s := range strs {
		c, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// MustParseSet is like ParseSet but panics on error.
func MustParseSet(strs ...string) Set {
	s, err := ParseSet(strs...)
	if err != nil {
		panic(err)
	}
	return s
}

// IsEmpty reports whether the set accepts nothing.
func (s Set) IsEmpty() bool {
	return len(s) == 0
}

// IsFixed reports whether the set is a single fixed caps.
func (s Set) IsFixed() bool {
	return len(s) == 1 && s[0].IsFixed()
}

// Intersect returns every non-empty pairwise intersection, in the order of s.
// Duplicates are dropped. A nil operand leaves the other unchanged.
func (s Set) Intersect(other Set) Set {
	if other == nil {
		return s
	}
	if s == nil {
		return other
	}
	out := Set{}
	for _, a := range s {
		for _, b := range other {
			c, ok := a.Intersect(b)
			if !ok || out.Contains(c) {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

// CanIntersect reports whether any pair intersects.
func (s Set) CanIntersect(other Set) bool {
	if s == nil || other == nil {
		return true
	}
	for _, a := range s {
		for _, b := range other {
			if a.CanIntersect(b) {
				return true
			}
		}
	}
	return false
}

// Contains reports whether an equal caps is already in the set.
func (s Set) Contains(c *Caps) bool {
	for _, e := range s {
		if e.Equal(c) {
			return true
		}
	}
	return false
}

// Names returns the distinct media type names in order.
func (s Set) Names() []string {
	var names []string
	seen := make(map[string]bool)
	for _, c := range s {
		if seen[c.name] {
			continue
		}
		seen[c.name] = true
		names = append(names, c.name)
	}
	return names
}

// Append returns s with c added when not already present.
func (s Set) Append(c ...*Caps) Set {
	for _, e := range c {
		if !s.Contains(e) {
			s = append(s, e)
		}
	}
	return s
}

func (s Set) String() string {
	if s == nil {
		return "ANY"
	}
	if len(s) == 0 {
		return "EMPTY"
	}
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ; ")
}
