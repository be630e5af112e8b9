package filter

import "sync/atomic"

// Sequencer orders overlapping fetches. Each fetch takes a ticket before it
// starts; when it completes, only the holder of the latest ticket may publish
// its result.
type Sequencer struct {
	latest atomic.Uint64
}

// Next issues a ticket newer than every ticket issued before.
func (s *Sequencer) Next() uint64 {
	return s.latest.Add(1)
}

// Accept reports whether ticket is still the most recent one.
func (s *Sequencer) Accept(ticket uint64) bool {
	return ticket == s.latest.Load()
}
