package core

import "math"

// Step timer clock
const (
	TimerFreq = 12000000 // 12MHz default timer frequency

	// Slowest rate a 16-bit reload with the largest prescaler can express
	MinStepFreq = float64(TimerFreq) / (1024 * 65535)
)

// Prescalers available on the 16-bit step timer, smallest first
var timerPrescalers = [...]uint16{1, 8, 64, 256, 1024}

// FreqToClocks converts a step frequency (Hz) into a 16-bit timer reload and
// prescaler. The reload is rounded up so the resulting rate never exceeds freq.
func FreqToClocks(freq float64) (reload uint16, prescale uint16) {
	if freq < MinStepFreq {
		freq = MinStepFreq
	}

	for _, p := range timerPrescalers {
		clocks := math.Ceil(float64(TimerFreq) / (float64(p) * freq))
		if clocks <= 65535 {
			if clocks < 1 {
				clocks = 1
			}
			return uint16(clocks), p
		}
	}

	return 65535, timerPrescalers[len(timerPrescalers)-1]
}

// ClocksToFreq converts a timer reload/prescaler pair back into Hz
func ClocksToFreq(reload, prescale uint16) float64 {
	if reload == 0 || prescale == 0 {
		return 0
	}
	return float64(TimerFreq) / (float64(reload) * float64(prescale))
}

// ClocksToTicks returns the timer period in base clock ticks
func ClocksToTicks(reload, prescale uint16) uint64 {
	return uint64(reload) * uint64(prescale)
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint64) uint64 {
	return us * (TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint64) uint64 {
	return (ticks * 1000000) / TimerFreq
}
