package core

import "testing"

func TestSchedulerOrdering(t *testing.T) {
	s := NewScheduler()
	var order []int

	mk := func(id int, wake uint64) *Timer {
		return &Timer{
			WakeTime: wake,
			Handler: func(*Timer) uint8 {
				order = append(order, id)
				return SF_DONE
			},
		}
	}

	s.Schedule(mk(3, 300))
	s.Schedule(mk(1, 100))
	s.Schedule(mk(2, 200))
	s.Schedule(mk(4, 200))

	if s.Pending() != 4 {
		t.Fatalf("Expected 4 pending timers, got %d", s.Pending())
	}

	s.Advance(250)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 4 {
		t.Errorf("Unexpected dispatch order %v", order)
	}
	if s.Now() != 250 {
		t.Errorf("Expected now=250, got %d", s.Now())
	}

	s.Advance(1000)
	if len(order) != 4 || order[3] != 3 {
		t.Errorf("Expected timer 3 last, got %v", order)
	}
}

func TestSchedulerReschedule(t *testing.T) {
	s := NewScheduler()
	count := 0
	timer := &Timer{WakeTime: 10}
	timer.Handler = func(t *Timer) uint8 {
		count++
		if count == 5 {
			return SF_DONE
		}
		t.WakeTime += 10
		return SF_RESCHEDULE
	}
	s.Schedule(timer)

	for s.RunNext() {
	}

	if count != 5 {
		t.Errorf("Expected 5 runs, got %d", count)
	}
	if s.Now() != 50 {
		t.Errorf("Expected now=50, got %d", s.Now())
	}
}

func TestSchedulerCancel(t *testing.T) {
	s := NewScheduler()
	fired := false
	a := &Timer{WakeTime: 5, Handler: func(*Timer) uint8 { fired = true; return SF_DONE }}
	b := &Timer{WakeTime: 6, Handler: func(*Timer) uint8 { return SF_DONE }}
	s.Schedule(a)
	s.Schedule(b)

	if !s.Cancel(a) {
		t.Error("Expected cancel to find timer")
	}
	if s.Cancel(a) {
		t.Error("Expected second cancel to fail")
	}
	s.Advance(10)
	if fired {
		t.Error("Cancelled timer fired")
	}
}
