package hal

import "cncmotion/motion"

// StepOutput drives the step and direction lines of all actuators.
// Step methods are called from the step callback and must not block.
type StepOutput interface {
	// SetSteps writes all step lines, bit i for actuator i
	SetSteps(mask uint8)

	// ToggleSteps inverts the step lines in mask
	ToggleSteps(mask uint8)

	// SetDirs writes all direction lines. A set bit is the negative direction
	// before any configured inversion.
	SetDirs(dirs motion.DirBits)

	// Name returns the backend implementation name
	Name() string
}

// Recorder is a StepOutput that counts pulses per actuator. A pulse is a
// transition of the step line away from its idle level.
type Recorder struct {
	idle   uint8
	level  uint8
	dirs   motion.DirBits
	Pulses [motion.MaxAxes]uint32

	// Position integrates pulses with the direction lines
	Position   motion.Steps
	DirChanges int
}

// NewRecorder creates a recorder whose step lines idle at idleMask
func NewRecorder(idleMask uint8) *Recorder {
	return &Recorder{idle: idleMask, level: idleMask}
}

func (r *Recorder) SetSteps(mask uint8) {
	r.level = mask
}

func (r *Recorder) ToggleSteps(mask uint8) {
	for i := 0; i < motion.MaxAxes; i++ {
		bit := uint8(1) << i
		if mask&bit == 0 {
			continue
		}
		if r.level&bit == r.idle&bit {
			r.Pulses[i]++
			if r.dirs.Has(i) {
				r.Position[i]--
			} else {
				r.Position[i]++
			}
		}
	}
	r.level ^= mask
}

func (r *Recorder) SetDirs(dirs motion.DirBits) {
	if dirs != r.dirs {
		r.DirChanges++
	}
	r.dirs = dirs
}

func (r *Recorder) Name() string {
	return "recorder"
}

// Dirs returns the last direction mask written
func (r *Recorder) Dirs() motion.DirBits {
	return r.dirs
}

// Total returns the pulse count summed over all actuators
func (r *Recorder) Total() uint64 {
	var n uint64
	for _, p := range r.Pulses {
		n += uint64(p)
	}
	return n
}

// Tee fans every call out to several outputs, in order
type Tee []StepOutput

func (t Tee) SetSteps(mask uint8) {
	for _, o := range t {
		o.SetSteps(mask)
	}
}

func (t Tee) ToggleSteps(mask uint8) {
	for _, o := range t {
		o.ToggleSteps(mask)
	}
}

func (t Tee) SetDirs(dirs motion.DirBits) {
	for _, o := range t {
		o.SetDirs(dirs)
	}
}

func (t Tee) Name() string {
	name := "tee"
	for _, o := range t {
		name += "+" + o.Name()
	}
	return name
}
