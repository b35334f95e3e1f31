package core

// Atomic runs fn with the step interrupt masked. Used by the background loop
// for the few multi-word reads and writes it shares with the step callback.
func Atomic(fn func()) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	fn()
}
