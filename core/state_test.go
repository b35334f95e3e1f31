package core

import "testing"

func TestExecFlags(t *testing.T) {
	var f ExecFlags

	f.Set(ExecRun | ExecHold)
	if !f.Is(ExecHold) {
		t.Error("Expected HOLD set")
	}
	if f.Get(ExecAlarm|ExecRun) != ExecRun {
		t.Errorf("Expected RUN only, got %s", f.Get(ExecAlarm|ExecRun))
	}

	f.Clear(ExecHold)
	if f.Is(ExecHold) {
		t.Error("Expected HOLD cleared")
	}
	if f.Load().String() != "RUN" {
		t.Errorf("Expected RUN, got %s", f.Load())
	}
	if ExecState(0).String() != "IDLE" {
		t.Errorf("Expected IDLE, got %s", ExecState(0))
	}
}

func TestFtoaState(t *testing.T) {
	tests := []struct {
		in   float64
		dec  int
		want string
	}{
		{1.5, 1, "1.5"},
		{-2.25, 2, "-2.25"},
		{100, 0, "100"},
		{0.05, 3, "0.050"},
	}
	for _, test := range tests {
		if got := Ftoa(test.in, test.dec); got != test.want {
			t.Errorf("Ftoa(%f,%d): expected %s, got %s", test.in, test.dec, test.want, got)
		}
	}
}

func TestTimingRing(t *testing.T) {
	ClearTimingRing()
	for i := 0; i < TimingRingSize+4; i++ {
		RecordTiming(EvtSegmentLoad, 0, uint32(i), 0, 0)
	}
	events := TimingEvents()
	if len(events) != TimingRingSize {
		t.Fatalf("Expected %d events, got %d", TimingRingSize, len(events))
	}
	if events[0].Clock != 4 {
		t.Errorf("Expected oldest clock 4, got %d", events[0].Clock)
	}

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})
	DumpTimingRing()
	if len(lines) != TimingRingSize+2 {
		t.Errorf("Expected %d dump lines, got %d", TimingRingSize+2, len(lines))
	}
	ClearTimingRing()
}

func TestAtomicRuns(t *testing.T) {
	ran := 0
	Atomic(func() { ran++ })
	if ran != 1 {
		t.Errorf("Expected fn to run once, got %d", ran)
	}
}
