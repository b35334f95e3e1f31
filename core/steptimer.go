package core

// StepHandler is driven by the step timer. Pulse runs at the start of each
// period and Reset half a period later. Both must return in bounded time.
type StepHandler interface {
	Pulse()
	Reset()
}

// StepTimer is the hardware timer that paces the step callback
type StepTimer interface {
	// Start begins firing at the given reload/prescaler
	Start(reload, prescale uint16)

	// Change reprograms the period without stopping
	Change(reload, prescale uint16)

	// Stop halts the timer
	Stop()

	// Running reports whether the timer is armed
	Running() bool
}

// SoftStepTimer implements StepTimer on a Scheduler, for host builds and
// simulation. Each period fires the handler's Pulse then its Reset.
type SoftStepTimer struct {
	sched   *Scheduler
	handler StepHandler
	timer   Timer

	period     uint64
	pulsePhase bool
	running    bool
	ticks      uint64
}

// NewSoftStepTimer creates a stopped timer bound to a scheduler
func NewSoftStepTimer(sched *Scheduler, handler StepHandler) *SoftStepTimer {
	st := &SoftStepTimer{
		sched:   sched,
		handler: handler,
	}
	st.timer.Handler = st.fire
	return st
}

// Start arms the timer. The first pulse fires one period from now.
func (st *SoftStepTimer) Start(reload, prescale uint16) {
	if st.running {
		st.Change(reload, prescale)
		return
	}
	st.period = periodTicks(reload, prescale)
	st.running = true
	st.pulsePhase = true
	st.timer.WakeTime = st.sched.Now() + st.period
	st.sched.Schedule(&st.timer)
	RecordTiming(EvtTimerStart, 0, uint32(st.sched.Now()), uint32(reload), uint32(prescale))
}

// Change reprograms the period. Takes effect from the next phase.
func (st *SoftStepTimer) Change(reload, prescale uint16) {
	st.period = periodTicks(reload, prescale)
}

// Stop disarms the timer
func (st *SoftStepTimer) Stop() {
	if !st.running {
		return
	}
	st.running = false
	st.sched.Cancel(&st.timer)
	RecordTiming(EvtTimerStop, 0, uint32(st.sched.Now()), uint32(st.ticks), 0)
}

// Running reports whether the timer is armed
func (st *SoftStepTimer) Running() bool {
	return st.running
}

// Ticks returns the number of pulse phases fired since creation
func (st *SoftStepTimer) Ticks() uint64 {
	return st.ticks
}

// Period returns the current period in base clock ticks
func (st *SoftStepTimer) Period() uint64 {
	return st.period
}

func (st *SoftStepTimer) fire(t *Timer) uint8 {
	if !st.running {
		return SF_DONE
	}

	if st.pulsePhase {
		st.ticks++
		st.handler.Pulse()
		t.WakeTime += st.period / 2
	} else {
		st.handler.Reset()
		t.WakeTime += st.period - st.period/2
	}
	st.pulsePhase = !st.pulsePhase

	if !st.running {
		return SF_DONE
	}
	return SF_RESCHEDULE
}

func periodTicks(reload, prescale uint16) uint64 {
	p := ClocksToTicks(reload, prescale)
	if p < 2 {
		p = 2
	}
	return p
}
