package controller

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cncmotion/motion"
	"cncmotion/planner"
)

// ErrSyntax is returned for an input line that is not a move or a dwell
var ErrSyntax = errors.New("syntax error")

// Request is one parsed motion line
type Request struct {
	Target motion.Vector
	Data   planner.BlockData
}

// ParseRequest reads one line of the text motion format. Accepted forms:
//
//	x y z [feed]     move at feed mm/min, defaultFeed when omitted
//	rapid x y z      move at the axis limits
//	dwell seconds    pause in place
//
// Blank lines and lines starting with '#' yield ok == false. Axes after z
// keep their last value.
func ParseRequest(line string, last motion.Vector, defaultFeed float64) (req Request, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return req, false, nil
	}

	fields := strings.Fields(strings.ToLower(line))
	switch fields[0] {
	case "dwell":
		if len(fields) != 2 {
			return req, false, fmt.Errorf("%w: dwell takes one argument", ErrSyntax)
		}
		sec, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || sec <= 0 {
			return req, false, fmt.Errorf("%w: bad dwell %q", ErrSyntax, fields[1])
		}
		req.Target = last
		req.Data.Dwell = time.Duration(sec * float64(time.Second))
		return req, true, nil

	case "rapid":
		req.Data.Flags = planner.FlagRapid
		fields = fields[1:]
		if len(fields) != 3 {
			return req, false, fmt.Errorf("%w: rapid takes x y z", ErrSyntax)
		}
	}

	if len(fields) < 3 || len(fields) > 4 {
		return req, false, fmt.Errorf("%w: expected x y z [feed], got %d fields", ErrSyntax, len(fields))
	}

	var vals [4]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return req, false, fmt.Errorf("%w: bad number %q", ErrSyntax, f)
		}
		vals[i] = v
	}

	req.Target = last
	req.Target[motion.AxisX] = vals[0]
	req.Target[motion.AxisY] = vals[1]
	req.Target[motion.AxisZ] = vals[2]
	if req.Data.Flags&planner.FlagRapid == 0 {
		req.Data.Feed = defaultFeed
		if len(fields) == 4 {
			req.Data.Feed = vals[3]
		}
	}
	req.Data.Flags |= planner.FlagFeedOverride
	return req, true, nil
}
