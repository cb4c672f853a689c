package draft

import "strings"

// TagSet is an insertion-ordered set of trimmed, non-empty tags.
// The zero value is ready to use.
type TagSet struct {
	order []string
	index map[string]struct{}
}

// Add inserts tag and reports whether it was new.
func (s *TagSet) Add(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[tag]; ok {
		return false
	}
	s.index[tag] = struct{}{}
	s.order = append(s.order, tag)
	return true
}

// Remove deletes tag and reports whether it was present.
func (s *TagSet) Remove(tag string) bool {
	tag = strings.TrimSpace(tag)
	if _, ok := s.index[tag]; !ok {
		return false
	}
	delete(s.index, tag)
	for i, t := range s.order {
		if t == tag {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Has reports whether tag is in the set.
func (s *TagSet) Has(tag string) bool {
	_, ok := s.index[strings.TrimSpace(tag)]
	return ok
}

// Replace discards the current tags and adds tags in order.
func (s *TagSet) Replace(tags []string) {
	s.order = nil
	s.index = nil
	for _, t := range tags {
		s.Add(t)
	}
}

// List returns a copy of the tags in insertion order.
func (s *TagSet) List() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of tags.
func (s *TagSet) Len() int {
	return len(s.order)
}
