package transfer

// store maps live handles to their accumulators. Entries appear at
// submission and leave exactly once: claimed by a take, or dropped by an
// abort. The engine mutex guards every method.
type store struct {
	entries map[Handle]*Accumulator
}

func newStore() *store {
	return &store{entries: make(map[Handle]*Accumulator)}
}

func (s *store) put(h Handle, acc *Accumulator) {
	s.entries[h] = acc
}

func (s *store) drop(h Handle) {
	delete(s.entries, h)
}

// takeCompleted claims the accumulator for h only if its transfer reached
// a terminal outcome. Unfinished entries stay claimable.
func (s *store) takeCompleted(h Handle) (*Accumulator, bool) {
	acc, ok := s.entries[h]
	if !ok || !acc.terminal() {
		return nil, false
	}
	delete(s.entries, h)
	return acc, true
}

// take claims the accumulator for h regardless of completion, reporting
// whether the transfer had finished. A second take of the same handle
// finds nothing.
func (s *store) take(h Handle) (acc *Accumulator, completed, ok bool) {
	acc, ok = s.entries[h]
	if !ok {
		return nil, false, false
	}
	delete(s.entries, h)
	return acc, acc.terminal(), true
}
