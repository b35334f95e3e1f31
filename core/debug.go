package core

import "sync/atomic"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a motion event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Axis      uint8  // Axis or slot index, when relevant
	Clock     uint32 // Timer clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtSegmentLoad = 1 // Step callback loaded a segment
	EvtDroppedTick = 2 // Step callback found itself busy
	EvtHold        = 3 // Generator forced deceleration
	EvtStarved     = 4 // Generator reached zero speed under hold
	EvtBlockDone   = 5 // Generator finished slicing a block
	EvtTimerStart  = 6
	EvtTimerStop   = 7
	EvtAbort       = 8
	EvtResync      = 9 // Speed snapped at a phase boundary
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Timing capture ring buffer (non-blocking, for post-mortem)
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead atomic.Uint32
	timingEnabled  atomic.Bool
)

func init() {
	timingEnabled.Store(true)
}

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetTimingEnabled turns event capture on or off
func SetTimingEnabled(enabled bool) {
	timingEnabled.Store(enabled)
}

// DebugPrintln writes a debug message using the platform-specific writer.
// Never call it from the step callback.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordTiming captures an event in the ring buffer. It never blocks and
// never allocates, so the step callback may call it.
func RecordTiming(eventType, axis uint8, clock, value1, value2 uint32) {
	if !timingEnabled.Load() {
		return
	}
	idx := (timingRingHead.Add(1) - 1) % TimingRingSize
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Axis:      axis,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
}

// TimingEvents returns the captured events, oldest first
func TimingEvents() []TimingEvent {
	head := timingRingHead.Load()
	out := make([]TimingEvent, 0, TimingRingSize)
	for i := uint32(0); i < TimingRingSize; i++ {
		evt := timingRing[(head+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// EventName returns a printable name for an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtSegmentLoad:
		return "SEGMENT_LOAD"
	case EvtDroppedTick:
		return "DROPPED_TICK!"
	case EvtHold:
		return "HOLD"
	case EvtStarved:
		return "STARVED"
	case EvtBlockDone:
		return "BLOCK_DONE"
	case EvtTimerStart:
		return "TIMER_START"
	case EvtTimerStop:
		return "TIMER_STOP"
	case EvtAbort:
		return "ABORT"
	case EvtResync:
		return "RESYNC"
	}
	return "UNKNOWN"
}

// DumpTimingRing outputs the timing ring buffer (call on shutdown/error)
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		debugPrintln("[TIMING] " + EventName(evt.EventType) +
			" axis=" + itoa(int(evt.Axis)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead.Store(0)
}
