package listing

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// LinkSet is a set of links that remembers insertion order.
type LinkSet struct {
	m *orderedmap.OrderedMap[string, struct{}]
}

// NewLinkSet returns an empty set.
func NewLinkSet() *LinkSet {
	return &LinkSet{m: orderedmap.New[string, struct{}]()}
}

// Add inserts link and reports whether it was new.
func (s *LinkSet) Add(link string) bool {
	if _, present := s.m.Get(link); present {
		return false
	}
	s.m.Set(link, struct{}{})
	return true
}

// AddAll inserts links in order and returns how many were new.
func (s *LinkSet) AddAll(links []string) int {
	added := 0
	for _, l := range links {
		if s.Add(l) {
			added++
		}
	}
	return added
}

func (s *LinkSet) Len() int {
	return s.m.Len()
}

// Links returns the members in insertion order. The result is never nil.
func (s *LinkSet) Links() []string {
	out := make([]string, 0, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
