package regalloc

import "sort"

// VarSet is a set of OLLIR variable names
type VarSet map[string]struct{}

// NewVarSet creates a set holding the given names
func NewVarSet(names ...string) VarSet {
	s := make(VarSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts a name
func (s VarSet) Add(name string) {
	s[name] = struct{}{}
}

// Contains reports membership
func (s VarSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Union returns s ∪ other
func (s VarSet) Union(other VarSet) VarSet {
	result := s.Copy()
	for n := range other {
		result.Add(n)
	}
	return result
}

// Minus returns s − other
func (s VarSet) Minus(other VarSet) VarSet {
	result := NewVarSet()
	for n := range s {
		if !other.Contains(n) {
			result.Add(n)
		}
	}
	return result
}

// Equal reports whether both sets hold the same names
func (s VarSet) Equal(other VarSet) bool {
	if len(s) != len(other) {
		return false
	}
	for n := range s {
		if !other.Contains(n) {
			return false
		}
	}
	return true
}

// Copy returns an independent copy
func (s VarSet) Copy() VarSet {
	result := make(VarSet, len(s))
	for n := range s {
		result.Add(n)
	}
	return result
}

// Sorted returns the names in lexicographic order
func (s VarSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
