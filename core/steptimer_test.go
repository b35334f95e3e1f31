package core

import "testing"

type phaseRecorder struct {
	sched  *Scheduler
	events []string
	times  []uint64
}

func (p *phaseRecorder) Pulse() {
	p.events = append(p.events, "pulse")
	p.times = append(p.times, p.sched.Now())
}

func (p *phaseRecorder) Reset() {
	p.events = append(p.events, "reset")
	p.times = append(p.times, p.sched.Now())
}

func TestSoftStepTimerAlternates(t *testing.T) {
	s := NewScheduler()
	rec := &phaseRecorder{sched: s}
	st := NewSoftStepTimer(s, rec)

	st.Start(100, 1)
	s.Advance(350)

	want := []string{"pulse", "reset", "pulse", "reset", "pulse", "reset"}
	if len(rec.events) != len(want) {
		t.Fatalf("Expected %d phases, got %d (%v)", len(want), len(rec.events), rec.events)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("phase %d: expected %s, got %s", i, want[i], rec.events[i])
		}
	}
	if rec.times[0] != 100 || rec.times[1] != 150 || rec.times[2] != 200 {
		t.Errorf("Unexpected phase times %v", rec.times)
	}
	if st.Ticks() != 3 {
		t.Errorf("Expected 3 ticks, got %d", st.Ticks())
	}
}

func TestSoftStepTimerChangeAndStop(t *testing.T) {
	s := NewScheduler()
	rec := &phaseRecorder{sched: s}
	st := NewSoftStepTimer(s, rec)

	st.Start(100, 1)
	s.Advance(100)
	st.Change(200, 1)
	s.Advance(1000)

	// pulse@100, reset@150 picks up the new period: pulse@250, reset@350
	if rec.times[2] != 250 || rec.times[3] != 350 {
		t.Errorf("Unexpected phase times after change %v", rec.times[:4])
	}

	st.Stop()
	n := len(rec.events)
	s.Advance(5000)
	if len(rec.events) != n {
		t.Error("Timer kept firing after Stop")
	}
	if st.Running() {
		t.Error("Expected timer stopped")
	}
}
