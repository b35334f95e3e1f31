package controller

import (
	"errors"
	"testing"
	"time"

	"cncmotion/motion"
	"cncmotion/planner"
)

func TestParseRequest(t *testing.T) {
	last := motion.Vector{1, 2, 3, 45}

	tests := []struct {
		name   string
		line   string
		ok     bool
		target motion.Vector
		feed   float64
		flags  planner.BlockFlags
		dwell  time.Duration
	}{
		{"move with feed", "10 20 -1 1500", true, motion.Vector{10, 20, -1, 45}, 1500, planner.FlagFeedOverride, 0},
		{"default feed", "10 20 -1", true, motion.Vector{10, 20, -1, 45}, 500, planner.FlagFeedOverride, 0},
		{"rapid", "RAPID 0 0 5", true, motion.Vector{0, 0, 5, 45}, 0, planner.FlagRapid | planner.FlagFeedOverride, 0},
		{"dwell", "dwell 0.25", true, last, 0, 0, 250 * time.Millisecond},
		{"blank", "   ", false, motion.Vector{}, 0, 0, 0},
		{"comment", "# setup", false, motion.Vector{}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, ok, err := ParseRequest(tt.line, last, 500)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if !ok {
				return
			}
			if req.Target != tt.target {
				t.Errorf("Expected target %v, got %v", tt.target, req.Target)
			}
			if req.Data.Feed != tt.feed || req.Data.Flags != tt.flags || req.Data.Dwell != tt.dwell {
				t.Errorf("Unexpected data %+v", req.Data)
			}
		})
	}
}

func TestParseRequestErrors(t *testing.T) {
	for _, line := range []string{"1 2", "1 2 3 4 5", "x 2 3", "dwell", "dwell -1", "rapid 1 2"} {
		if _, _, err := ParseRequest(line, motion.Vector{}, 500); !errors.Is(err, ErrSyntax) {
			t.Errorf("%q: expected ErrSyntax, got %v", line, err)
		}
	}
}
