package core

import "sync/atomic"

// ExecState is the machine execution state bitmask shared by the background
// loop and the step callback
type ExecState uint32

const (
	ExecRun ExecState = 1 << iota
	ExecHold
	ExecAlarm
	ExecJog
	ExecHoming
	ExecUnhomed

	ExecAllActive = ExecRun | ExecHold | ExecAlarm | ExecJog | ExecHoming | ExecUnhomed
)

// String returns the names of the set flags
func (s ExecState) String() string {
	if s == 0 {
		return "IDLE"
	}
	names := [...]string{"RUN", "HOLD", "ALARM", "JOG", "HOMING", "UNHOMED"}
	out := ""
	for i, n := range names {
		if s&(1<<i) != 0 {
			if out != "" {
				out += "|"
			}
			out += n
		}
	}
	return out
}

// ExecFlags holds an ExecState that both execution contexts may read and
// modify without locks
type ExecFlags struct {
	v atomic.Uint32
}

// Get returns the flags of mask that are currently set
func (f *ExecFlags) Get(mask ExecState) ExecState {
	return ExecState(f.v.Load()) & mask
}

// Is reports whether any flag of mask is set
func (f *ExecFlags) Is(mask ExecState) bool {
	return f.Get(mask) != 0
}

// Set sets the flags in mask
func (f *ExecFlags) Set(mask ExecState) {
	f.v.Or(uint32(mask))
}

// Clear clears the flags in mask
func (f *ExecFlags) Clear(mask ExecState) {
	f.v.And(^uint32(mask))
}

// Load returns the whole state
func (f *ExecFlags) Load() ExecState {
	return ExecState(f.v.Load())
}
