package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gdamore/tcell/v2"

	"cncmotion/controller"
	"cncmotion/core"
	"cncmotion/motion"
	"cncmotion/planner"
)

const frame = 16 * time.Millisecond // ~60 FPS

var (
	styleLabel = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleValue = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleRun   = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleHold  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleAlarm = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
)

// statusView draws the machine state while moves stream in real time
type statusView struct {
	screen  tcell.Screen
	s       *session
	pending *controller.Request
	message string
	eof     bool
}

// runTUI paces virtual time with the wall clock so motion can be watched.
// Keys: space hold/resume, a abort, c clear alarm, +/- feed override,
// r reset overrides, q or Esc quit.
func runTUI(ctx context.Context, s *session, r io.Reader) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	v := &statusView{screen: screen, s: s}

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			if !v.handleInput(ev) {
				return nil
			}

		case <-ticker.C:
			v.feed(lines)
			s.advance(frame)
			v.draw()
		}
	}
}

// feed submits input lines until the look-ahead queue is full
func (v *statusView) feed(lines <-chan string) {
	for {
		if v.pending == nil {
			if v.eof {
				return
			}
			select {
			case line, ok := <-lines:
				if !ok {
					v.eof = true
					return
				}
				req, ok, err := v.s.parse(line)
				if err != nil {
					v.message = err.Error()
					continue
				}
				if !ok {
					continue
				}
				v.pending = &req
			default:
				return
			}
		}

		err := v.s.trySubmit(*v.pending)
		if errors.Is(err, planner.ErrQueueFull) || errors.Is(err, planner.ErrAlarm) {
			return
		}
		if err != nil {
			v.message = fmt.Sprintf("line %d: %v", v.pending.Data.Line, err)
		}
		v.pending = nil
	}
}

func (v *statusView) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}

		ctl := v.s.ctl
		switch ev.Rune() {
		case 'q':
			return false
		case ' ':
			if ctl.State()&core.ExecHold != 0 {
				ctl.Resume()
				v.message = "resumed"
			} else {
				ctl.FeedHold()
				v.message = "feed hold"
			}
		case 'a':
			v.s.abort()
			v.pending = nil
			v.message = "aborted, c clears the alarm"
		case 'c':
			ctl.ClearAlarm()
			v.message = "alarm cleared"
		case '+':
			ctl.SetFeedOverride(int(ctl.Overrides().Feed) + 10)
		case '-':
			ctl.SetFeedOverride(int(ctl.Overrides().Feed) - 10)
		case 'r':
			ctl.SetFeedOverride(100)
			ctl.SetRapidOverride(100)
			ctl.SetSpindleOverride(100)
		}

	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *statusView) text(x, y int, style tcell.Style, s string) int {
	for _, r := range s {
		v.screen.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}

func (v *statusView) field(x, y int, label, value string, style tcell.Style) {
	x = v.text(x, y, styleLabel, label)
	v.text(x+1, y, style, value)
}

func (v *statusView) draw() {
	ctl := v.s.ctl
	v.screen.Clear()

	state := ctl.State()
	stateStyle := styleRun
	switch {
	case state&core.ExecAlarm != 0:
		stateStyle = styleAlarm
	case state&core.ExecHold != 0:
		stateStyle = styleHold
	}

	y := 0
	v.text(0, y, styleValue, "motion-sim")
	y += 2
	v.field(0, y, "state:   ", state.String(), stateStyle)
	y++
	v.field(0, y, "time:    ", v.s.elapsed().Truncate(time.Millisecond).String(), styleValue)
	y++
	v.field(0, y, "feed:    ", fmt.Sprintf("%.1f mm/min", ctl.CurrentFeed()), styleValue)
	y++
	ovr := ctl.Overrides()
	v.field(0, y, "override:", fmt.Sprintf("feed %d%%  rapid %d%%  spindle %d%%", ovr.Feed, ovr.Rapid, ovr.Spindle), styleValue)
	y++
	v.field(0, y, "queue:   ", fmt.Sprintf("%d/%d blocks", ctl.QueueLen(), v.s.cfg.Motion.PlannerBufferSize), styleValue)
	y += 2

	pos := ctl.CurrentPosition()
	rt := ctl.CurrentRealtimePosition()
	for i, name := range motion.AxisNames {
		if _, ok := v.s.cfg.Axis(i); !ok {
			continue
		}
		v.field(0, y, fmt.Sprintf("%-8s:", name), fmt.Sprintf("%10.3f mm  %9d steps", pos[i], rt[i]), styleValue)
		y++
	}
	y++

	v.field(0, y, "spindle: ", fmt.Sprintf("duty %d", v.s.spindle.Last.Duty), styleValue)
	y++
	v.field(0, y, "dropped: ", fmt.Sprint(ctl.Dropped()), styleValue)
	y += 2

	if v.eof && ctl.IsIdle() {
		v.text(0, y, styleRun, "input done, q to quit")
		y++
	}
	if v.message != "" {
		v.text(0, y, styleHold, v.message)
		y++
	}
	v.text(0, y+1, styleLabel, "space hold/resume  a abort  c clear  +/- feed  r reset  q quit")

	v.screen.Show()
}
