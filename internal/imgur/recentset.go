package imgur

// recentSet is a fixed-capacity FIFO set of image IDs used to filter out
// recently shown images. Inserting into a full set evicts the oldest entry.
// Not safe for concurrent use; the Client is its only owner.
type recentSet struct {
	capacity int
	order    []string
	members  map[string]struct{}
}

func newRecentSet(capacity int) *recentSet {
	return &recentSet{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		members:  make(map[string]struct{}, capacity),
	}
}

func (s *recentSet) contains(id string) bool {
	_, ok := s.members[id]
	return ok
}

// add inserts id, evicting the oldest entry if the set is at capacity.
// Adding an id that is already present is a no-op.
func (s *recentSet) add(id string) {
	if s.contains(id) {
		return
	}
	if len(s.order) == s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.members, oldest)
	}
	s.order = append(s.order, id)
	s.members[id] = struct{}{}
}

func (s *recentSet) len() int {
	return len(s.order)
}
