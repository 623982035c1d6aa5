package bridge

// processedSet is a bounded set of message ids the bridge has already
// dispatched to handlers. It grows during polling and is trimmed back to its
// cap (oldest entries first) so memory stays bounded however long the bridge
// runs. Not safe for concurrent use; the bridge serializes access.
type processedSet struct {
	cap   int
	ids   map[string]struct{}
	order []string
}

func newProcessedSet(cap int) *processedSet {
	return &processedSet{cap: cap, ids: make(map[string]struct{})}
}

func (s *processedSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Add records an id. Insertion order is kept so Trim can evict oldest first.
func (s *processedSet) Add(id string) {
	if s.Contains(id) {
		return
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
}

// Trim evicts the oldest entries until the set fits its cap again.
func (s *processedSet) Trim() {
	for len(s.order) > s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}
}

func (s *processedSet) Len() int {
	return len(s.order)
}
