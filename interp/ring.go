package interp

import "sync/atomic"

// SegmentRing is a fixed-capacity single-producer single-consumer queue of
// execution segments. The background loop reserves and publishes; the step
// callback peeks and advances. A published segment is never written by the
// producer again.
type SegmentRing struct {
	buf  []Segment
	head atomic.Uint64 // written by producer
	tail atomic.Uint64 // written by consumer
}

// NewSegmentRing creates a ring holding n segments
func NewSegmentRing(n int) *SegmentRing {
	if n < 1 {
		n = 1
	}
	return &SegmentRing{buf: make([]Segment, n)}
}

// Reserve returns the slot the producer fills next, or nil when full.
// The slot becomes visible to the consumer only after Publish.
func (r *SegmentRing) Reserve() *Segment {
	head := r.head.Load()
	if head-r.tail.Load() >= uint64(len(r.buf)) {
		return nil
	}
	seg := &r.buf[head%uint64(len(r.buf))]
	*seg = Segment{}
	return seg
}

// Publish hands the reserved slot to the consumer
func (r *SegmentRing) Publish() {
	r.head.Add(1)
}

// Peek returns the oldest published segment, or nil when empty
func (r *SegmentRing) Peek() *Segment {
	tail := r.tail.Load()
	if tail >= r.head.Load() {
		return nil
	}
	return &r.buf[tail%uint64(len(r.buf))]
}

// Advance releases the oldest segment back to the producer
func (r *SegmentRing) Advance() {
	if r.tail.Load() < r.head.Load() {
		r.tail.Add(1)
	}
}

// Len returns the number of published segments
func (r *SegmentRing) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Cap returns the ring capacity
func (r *SegmentRing) Cap() int {
	return len(r.buf)
}

func (r *SegmentRing) Full() bool {
	return r.Len() >= len(r.buf)
}

func (r *SegmentRing) Empty() bool {
	return r.Len() == 0
}

// Clear drops all segments. Only valid while the consumer is stopped.
func (r *SegmentRing) Clear() {
	r.tail.Store(r.head.Load())
}
