package media

import "sync/atomic"

// SeqGen is an atomic frame number generator, safe to share between goroutines.
type SeqGen struct {
	val atomic.Uint64
}

// NewSeqGen creates a new sequence generator starting at 0.
// The first call to Next() returns 1.
func NewSeqGen() *SeqGen {
	return &SeqGen{}
}

// Next returns the next frame number (monotonically increasing from 1).
func (s *SeqGen) Next() uint64 {
	return s.val.Add(1)
}

// Last returns the most recently issued number, 0 if none.
func (s *SeqGen) Last() uint64 {
	return s.val.Load()
}
