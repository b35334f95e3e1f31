//go:build rp2040

package main

import (
	"errors"
	"machine"
	"time"

	"cncmotion/config"
	"cncmotion/controller"
	"cncmotion/core"
	"cncmotion/motion"
	"cncmotion/planner"
	"cncmotion/tool"
)

// Pico pin assignment
const (
	spindlePWMPin = machine.GPIO15
	spindleDirPin = machine.GPIO14
	spindleFreq   = 5000 // Hz

	maxLine    = 128
	maxPending = 4
)

// Realtime commands act as soon as the byte arrives, outside the line stream
const (
	rtHold   = '!'
	rtResume = '~'
	rtStatus = '?'
	rtAbort  = 0x18 // ctrl-x
)

var (
	ctl   *controller.Controller
	sched *core.Scheduler
	cfg   *config.Machine

	lineBuf  [maxLine]byte
	lineLen  int
	overflow bool

	// complete lines waiting for the planner, oldest first
	lines   []string
	pending *controller.Request
	last    motion.Vector

	msgerrors uint32
)

func main() {
	// CRITICAL: Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	core.SetDebugWriter(func(s string) { USBWriteString("[MSG:" + s + "]") })
	core.SetDebugEnabled(true)

	cfg = picoMachine()

	var spindle tool.Output
	if s, err := NewSpindlePWM(spindlePWMPin, spindleDirPin, spindleFreq); err == nil {
		spindle = s
	} else {
		msgerrors++
	}

	// Pulses are released from the polled main loop, which advances the
	// scheduler to the hardware clock on every pass
	sched = core.NewScheduler()
	ctl, err = controller.New(cfg, controller.Options{
		Output: NewSIOOutput(cfg),
		Tool:   spindle,
		Timer: func(h core.StepHandler) core.StepTimer {
			return core.NewSoftStepTimer(sched, h)
		},
		Idle: func() {
			sched.Advance(schedulerNow())
		},
	})
	if err != nil {
		for {
			blink(100 * time.Millisecond)
		}
	}

	USBWriteString("cncmotion ready")

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					ctl.Abort()
					dropInput()
					USBWriteString("ALARM: panic")
				}
			}()

			sched.Advance(schedulerNow())
			pollUSB()
			feedPlanner()
			ctl.DoTasks()
		}()

		machine.LED.Set(ctl.State()&core.ExecAlarm != 0)

		// Yield to the USB stack
		time.Sleep(10 * time.Microsecond)
	}
}

// picoMachine is the default mill with step/dir pairs on GPIO 2-7
func picoMachine() *config.Machine {
	m := config.Default()
	for i, name := range []string{"x", "y", "z"} {
		a := m.Axes[name]
		a.StepPin = 2 + 2*i
		a.DirPin = 3 + 2*i
		m.Axes[name] = a
	}
	return m
}

// pollUSB drains the USB receive buffer into the line buffer
func pollUSB() {
	for USBAvailable() > 0 {
		b, err := USBRead()
		if err != nil {
			msgerrors++
			return
		}

		switch b {
		case rtHold:
			ctl.FeedHold()
			continue
		case rtResume:
			ctl.Resume()
			continue
		case rtStatus:
			reportStatus()
			continue
		case rtAbort:
			ctl.Abort()
			dropInput()
			USBWriteString("ALARM: abort")
			core.DumpTimingRing()
			continue
		case '\r', '\n':
			endLine()
			continue
		}

		if lineLen == maxLine {
			overflow = true
			continue
		}
		lineBuf[lineLen] = b
		lineLen++
	}
}

func endLine() {
	line := string(lineBuf[:lineLen])
	lineLen = 0
	if overflow {
		overflow = false
		USBWriteString("error: line too long")
		return
	}
	if line == "" {
		return
	}
	if len(lines) == maxPending {
		USBWriteString("error: input overflow")
		return
	}
	lines = append(lines, line)
}

// feedPlanner moves parsed lines into the planner as space frees up. A line
// is only acknowledged once its move is queued, so a host waiting for "ok"
// never outruns the planner.
func feedPlanner() {
	for {
		if pending == nil {
			if len(lines) == 0 {
				return
			}
			line := lines[0]
			lines = lines[1:]
			if handleSystem(line) {
				continue
			}

			req, ok, err := controller.ParseRequest(line, last, cfg.DefaultFeed)
			if err != nil {
				USBWriteString("error: " + err.Error())
				continue
			}
			if !ok {
				USBWriteString("ok")
				continue
			}
			pending = &req
		}

		err := ctl.TrySubmitLine(pending.Target, pending.Data)
		switch {
		case err == nil:
			last = pending.Target
			pending = nil
			USBWriteString("ok")
		case errors.Is(err, planner.ErrQueueFull):
			return
		default:
			pending = nil
			USBWriteString("error: " + err.Error())
		}
	}
}

// handleSystem runs $ commands, which bypass the planner
func handleSystem(line string) bool {
	switch line {
	case "$x", "$X":
		ctl.ClearAlarm()
		last = ctl.CurrentPosition()
	case "$h", "$H":
		if err := ctl.SetPosition(motion.Vector{}); err != nil {
			USBWriteString("error: " + err.Error())
			return true
		}
		last = motion.Vector{}
	default:
		return false
	}
	USBWriteString("ok")
	return true
}

func dropInput() {
	lines = lines[:0]
	pending = nil
	lineLen = 0
	last = ctl.CurrentPosition()
}

// reportStatus prints <STATE|MPos:x,y,z|F:feed|Ov:feed,rapid,spindle>
func reportStatus() {
	pos := ctl.CurrentPosition()
	ov := ctl.Overrides()

	s := "<" + ctl.State().String() + "|MPos:"
	for i := 0; i < 3; i++ {
		if i > 0 {
			s += ","
		}
		s += core.Ftoa(pos[i], 3)
	}
	s += "|F:" + core.Ftoa(ctl.CurrentFeed(), 0)
	s += "|Ov:" + core.Itoa(int(ov.Feed)) + "," + core.Itoa(int(ov.Rapid)) + "," + core.Itoa(int(ov.Spindle))
	s += ">"
	USBWriteString(s)
}

func blink(d time.Duration) {
	machine.LED.High()
	time.Sleep(d)
	machine.LED.Low()
	time.Sleep(d)
}
