package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cncmotion/motion"

	"gopkg.in/yaml.v3"
)

// Format selects the decoder used by Parse
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

var (
	ErrUnknownFormat = errors.New("unknown config format")
	ErrNoAxes        = errors.New("no axes configured")
)

// AxisConfig represents configuration for a single axis
type AxisConfig struct {
	StepPin      int     `json:"step_pin" yaml:"step_pin"`           // BCM / MCU pin for step pulses
	DirPin       int     `json:"dir_pin" yaml:"dir_pin"`             // pin for direction
	EnablePin    int     `json:"enable_pin" yaml:"enable_pin"`       // 0 = not used
	StepsPerMM   float64 `json:"steps_per_mm" yaml:"steps_per_mm"`   // steps per millimeter
	MaxFeed      float64 `json:"max_feed" yaml:"max_feed"`           // mm/min
	Acceleration float64 `json:"acceleration" yaml:"acceleration"`   // mm/s^2
	MinPosition  float64 `json:"min_position" yaml:"min_position"`   // mm
	MaxPosition  float64 `json:"max_position" yaml:"max_position"`   // mm
	InvertStep   bool    `json:"invert_step" yaml:"invert_step"`     // idle-high step line
	InvertDir    bool    `json:"invert_dir" yaml:"invert_dir"`       // invert direction signal
	InvertEnable bool    `json:"invert_enable" yaml:"invert_enable"` // invert enable signal
}

// MotionConfig holds planner and interpolator tuning
type MotionConfig struct {
	PlannerBufferSize  int     `json:"planner_buffer_size" yaml:"planner_buffer_size"`   // look-ahead blocks
	SegmentBufferSize  int     `json:"segment_buffer_size" yaml:"segment_buffer_size"`   // execution segments
	InterpolatorFreq   float64 `json:"interpolator_freq" yaml:"interpolator_freq"`       // segments per second (Hz)
	MaxStepRate        float64 `json:"max_step_rate" yaml:"max_step_rate"`               // step timer ceiling (Hz)
	DSSMaxOversampling int     `json:"dss_max_oversampling" yaml:"dss_max_oversampling"` // 0 disables DSS
	DSSCutoffFreq      float64 `json:"dss_cutoff_freq" yaml:"dss_cutoff_freq"`           // oversample below this step rate (Hz)
	G64AngleFactor     float64 `json:"g64_angle_factor" yaml:"g64_angle_factor"`         // junction relaxation in continuous mode
}

// ToolConfig describes the spindle / laser output
type ToolConfig struct {
	SpindleMinRPM float64 `json:"spindle_min_rpm" yaml:"spindle_min_rpm"`
	SpindleMaxRPM float64 `json:"spindle_max_rpm" yaml:"spindle_max_rpm"`
	LaserMode     bool    `json:"laser_mode" yaml:"laser_mode"`
}

// Machine represents the complete machine configuration
type Machine struct {
	Kinematics  string                `json:"kinematics" yaml:"kinematics"` // "cartesian", "corexy"
	Axes        map[string]AxisConfig `json:"axes" yaml:"axes"`             // "x", "y", "z", ...
	Motion      MotionConfig          `json:"motion" yaml:"motion"`
	Tool        ToolConfig            `json:"tool" yaml:"tool"`
	DefaultFeed float64               `json:"default_feed" yaml:"default_feed"` // mm/min
}

// Load reads a JSON or YAML file, chosen by extension
func Load(path string) (*Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
		format = FormatYAML
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	return Parse(data, format)
}

// Parse decodes configuration data, applies defaults and validates it
func Parse(data []byte, format Format) (*Machine, error) {
	var cfg Machine

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	default:
		return nil, ErrUnknownFormat
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in missing configuration values
func applyDefaults(cfg *Machine) {
	if cfg.Kinematics == "" {
		cfg.Kinematics = "cartesian"
	}
	if cfg.DefaultFeed == 0 {
		cfg.DefaultFeed = 500
	}

	m := &cfg.Motion
	if m.PlannerBufferSize == 0 {
		m.PlannerBufferSize = 10
	}
	if m.SegmentBufferSize == 0 {
		m.SegmentBufferSize = 5
	}
	if m.InterpolatorFreq == 0 {
		m.InterpolatorFreq = 100
	}
	if m.MaxStepRate == 0 {
		m.MaxStepRate = 30000
	}
	if m.DSSCutoffFreq == 0 {
		m.DSSCutoffFreq = m.MaxStepRate / 4
	}

	if cfg.Tool.SpindleMaxRPM == 0 {
		cfg.Tool.SpindleMaxRPM = 1000
	}

	for name, axis := range cfg.Axes {
		if axis.StepsPerMM == 0 {
			axis.StepsPerMM = 200
		}
		if axis.MaxFeed == 0 {
			axis.MaxFeed = 500
		}
		if axis.Acceleration == 0 {
			axis.Acceleration = 10
		}
		if axis.MaxPosition == 0 && axis.MinPosition == 0 {
			axis.MinPosition = -1e6
			axis.MaxPosition = 1e6
		}
		cfg.Axes[strings.ToLower(name)] = axis
		if name != strings.ToLower(name) {
			delete(cfg.Axes, name)
		}
	}
}

// Validate rejects configurations the planner cannot run with
func (cfg *Machine) Validate() error {
	if len(cfg.Axes) == 0 {
		return ErrNoAxes
	}
	for name, axis := range cfg.Axes {
		if AxisIndex(name) < 0 {
			return fmt.Errorf("axes.%s: unknown axis name", name)
		}
		if axis.StepsPerMM <= 0 {
			return fmt.Errorf("axes.%s.steps_per_mm must be > 0, got %.3f", name, axis.StepsPerMM)
		}
		if axis.MaxFeed <= 0 {
			return fmt.Errorf("axes.%s.max_feed must be > 0, got %.3f", name, axis.MaxFeed)
		}
		if axis.Acceleration <= 0 {
			return fmt.Errorf("axes.%s.acceleration must be > 0, got %.3f", name, axis.Acceleration)
		}
		if axis.MinPosition > axis.MaxPosition {
			return fmt.Errorf("axes.%s: min_position > max_position", name)
		}
	}

	m := cfg.Motion
	if m.PlannerBufferSize < 2 || m.PlannerBufferSize > 255 {
		return fmt.Errorf("motion.planner_buffer_size must be between 2 and 255, got %d", m.PlannerBufferSize)
	}
	if m.SegmentBufferSize < 2 || m.SegmentBufferSize > 255 {
		return fmt.Errorf("motion.segment_buffer_size must be between 2 and 255, got %d", m.SegmentBufferSize)
	}
	if m.InterpolatorFreq <= 0 {
		return fmt.Errorf("motion.interpolator_freq must be > 0, got %.3f", m.InterpolatorFreq)
	}
	if m.DSSMaxOversampling < 0 || m.DSSMaxOversampling > 3 {
		return fmt.Errorf("motion.dss_max_oversampling must be between 0 and 3, got %d", m.DSSMaxOversampling)
	}
	if m.G64AngleFactor < 0 || m.G64AngleFactor > 1 {
		return fmt.Errorf("motion.g64_angle_factor must be between 0 and 1, got %.3f", m.G64AngleFactor)
	}
	switch cfg.Kinematics {
	case "cartesian", "corexy":
	default:
		return fmt.Errorf("unsupported kinematics: %s", cfg.Kinematics)
	}
	if cfg.Tool.SpindleMinRPM > cfg.Tool.SpindleMaxRPM {
		return fmt.Errorf("tool.spindle_min_rpm > tool.spindle_max_rpm")
	}
	return nil
}

// AxisIndex maps an axis name to its index, or -1
func AxisIndex(name string) int {
	name = strings.ToLower(name)
	for i, n := range motion.AxisNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Axis returns the configuration of the axis at index i
func (cfg *Machine) Axis(i int) (AxisConfig, bool) {
	if i < 0 || i >= motion.MaxAxes {
		return AxisConfig{}, false
	}
	a, ok := cfg.Axes[motion.AxisNames[i]]
	return a, ok
}

// StepsPerMM returns the per-axis step resolution, zero for unconfigured axes
func (cfg *Machine) StepsPerMM() motion.Vector {
	var v motion.Vector
	for i := 0; i < motion.MaxAxes; i++ {
		if a, ok := cfg.Axis(i); ok {
			v[i] = a.StepsPerMM
		}
	}
	return v
}

// Default returns a three axis cartesian mill
func Default() *Machine {
	cfg := &Machine{
		Kinematics: "cartesian",
		Axes: map[string]AxisConfig{
			"x": {StepPin: 17, DirPin: 27, StepsPerMM: 200, MaxFeed: 3000, Acceleration: 100, MinPosition: -500, MaxPosition: 500},
			"y": {StepPin: 22, DirPin: 23, StepsPerMM: 200, MaxFeed: 3000, Acceleration: 100, MinPosition: -500, MaxPosition: 500},
			"z": {StepPin: 24, DirPin: 25, StepsPerMM: 400, MaxFeed: 600, Acceleration: 50, MinPosition: -200, MaxPosition: 200},
		},
		Motion: MotionConfig{
			DSSMaxOversampling: 2,
		},
	}
	applyDefaults(cfg)
	return cfg
}
