package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint64
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler keeps timers sorted by wake time and dispatches them as its
// clock advances. Time is counted in TimerFreq ticks.
type Scheduler struct {
	list *Timer
	now  uint64
}

// NewScheduler creates an empty scheduler at time zero
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Now returns the current scheduler time in ticks
func (s *Scheduler) Now() uint64 {
	return s.now
}

// Schedule adds a timer to the schedule
func (s *Scheduler) Schedule(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.insert(t)
}

// Cancel removes a timer if it is pending. Returns true when it was removed.
func (s *Scheduler) Cancel(t *Timer) bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if s.list == t {
		s.list = t.Next
		t.Next = nil
		return true
	}
	for cur := s.list; cur != nil; cur = cur.Next {
		if cur.Next == t {
			cur.Next = t.Next
			t.Next = nil
			return true
		}
	}
	return false
}

// insert inserts a timer in sorted order by WakeTime. Timers with equal wake
// times keep their insertion order.
func (s *Scheduler) insert(t *Timer) {
	if s.list == nil || t.WakeTime < s.list.WakeTime {
		t.Next = s.list
		s.list = t
		return
	}

	current := s.list
	for current.Next != nil && current.Next.WakeTime <= t.WakeTime {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// NextWake returns the wake time of the earliest pending timer
func (s *Scheduler) NextWake() (uint64, bool) {
	if s.list == nil {
		return 0, false
	}
	return s.list.WakeTime, true
}

// Pending returns the number of scheduled timers
func (s *Scheduler) Pending() int {
	n := 0
	for cur := s.list; cur != nil; cur = cur.Next {
		n++
	}
	return n
}

// Advance moves the clock forward to the given time, running every timer
// due on the way. Handlers see Now() equal to their own wake time.
func (s *Scheduler) Advance(to uint64) {
	for s.list != nil && s.list.WakeTime <= to {
		state := disableInterrupts()
		timer := s.list
		s.list = timer.Next
		timer.Next = nil // Clear Next pointer to avoid circular references
		restoreInterrupts(state)

		if timer.WakeTime > s.now {
			s.now = timer.WakeTime
		}

		if timer.Handler(timer) == SF_RESCHEDULE {
			s.Schedule(timer)
		}
	}

	if to > s.now {
		s.now = to
	}
}

// RunNext advances to the earliest pending timer and runs it. Returns false
// when nothing is scheduled.
func (s *Scheduler) RunNext() bool {
	wake, ok := s.NextWake()
	if !ok {
		return false
	}
	s.Advance(wake)
	return true
}
