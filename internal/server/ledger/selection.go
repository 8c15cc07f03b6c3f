package ledger

// Set is an unordered set of asset ids.
type Set map[string]struct{}

func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	s.Add(ids...)
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Selection is the in-progress cart: a duplicate-free list kept in the
// order items were picked.
type Selection struct {
	ids []string
}

func (s *Selection) Has(id string) bool {
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

// IDs returns a copy of the selected ids.
func (s *Selection) IDs() []string {
	return append([]string(nil), s.ids...)
}

func (s *Selection) Len() int { return len(s.ids) }

func (s *Selection) add(id string) {
	if !s.Has(id) {
		s.ids = append(s.ids, id)
	}
}

// Remove drops every id in ids from the selection.
func (s *Selection) Remove(ids ...string) {
	drop := NewSet(ids...)
	kept := s.ids[:0]
	for _, v := range s.ids {
		if !drop.Has(v) {
			kept = append(kept, v)
		}
	}
	s.ids = kept
}

// DropUnlocked removes ids that are already unlocked, restoring
// selection ∩ unlocked = ∅ after the unlocked set grew elsewhere.
func (s *Selection) DropUnlocked(unlocked Set) {
	kept := s.ids[:0]
	for _, v := range s.ids {
		if !unlocked.Has(v) {
			kept = append(kept, v)
		}
	}
	s.ids = kept
}

func (s *Selection) Clear() {
	s.ids = nil
}
