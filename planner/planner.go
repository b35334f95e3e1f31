package planner

import (
	"errors"
	"math"

	"cncmotion/config"
	"cncmotion/motion"
	"cncmotion/tool"
)

var (
	// ErrQueueFull is returned by AddLine when the look-ahead queue holds its capacity.
	// The caller runs the background loop and retries.
	ErrQueueFull = errors.New("planner queue full")
	// ErrAlarm is returned while an alarm refuses new motion
	ErrAlarm = errors.New("alarm active")
	// ErrUnconfiguredAxis is returned for motion along an axis without limits
	ErrUnconfiguredAxis = errors.New("motion on unconfigured axis")
	// ErrInvalidFeed is returned for a feed move without a positive feed
	ErrInvalidFeed = errors.New("feed must be > 0")
)

// Override limits in percent
const (
	FeedOverrideMin = 10
	FeedOverrideMax = 200
)

// Overrides is a snapshot of the override state
type Overrides struct {
	Feed    uint8
	Rapid   uint8
	Spindle uint8
	Enabled bool
}

// Planner is the look-ahead queue and velocity optimizer.
// It is owned by the background loop and is not safe for concurrent use.
type Planner struct {
	blocks []Block
	read   int
	write  int
	count  int

	maxSpeed [motion.MaxAxes]float64 // mm/s
	accel    [motion.MaxAxes]float64 // mm/s^2
	g64      float64

	lastPos motion.Vector
	lastDir motion.Vector

	spindleRPM float64
	coolant    uint8
	spindle    *tool.Spindle

	ovr Overrides

	// OnUpdate is called whenever the in-flight block's profile must be
	// recomputed: the oldest block's exit speed changed, or an override moved.
	OnUpdate func()
}

// New creates a planner sized and limited from the machine configuration
func New(cfg *config.Machine) *Planner {
	p := &Planner{
		blocks:  make([]Block, cfg.Motion.PlannerBufferSize),
		g64:     cfg.Motion.G64AngleFactor,
		spindle: tool.NewSpindle(cfg.Tool),
		ovr:     Overrides{Feed: 100, Rapid: 100, Spindle: 100, Enabled: true},
	}
	for i := 0; i < motion.MaxAxes; i++ {
		if a, ok := cfg.Axis(i); ok {
			p.maxSpeed[i] = a.MaxFeed / 60
			p.accel[i] = a.Acceleration
		}
	}
	return p
}

func (p *Planner) next(i int) int {
	if i++; i == len(p.blocks) {
		return 0
	}
	return i
}

func (p *Planner) prev(i int) int {
	if i == 0 {
		i = len(p.blocks)
	}
	return i - 1
}

// Cap returns the queue capacity
func (p *Planner) Cap() int { return len(p.blocks) }

// Len returns the number of queued blocks, including the one in flight
func (p *Planner) Len() int { return p.count }

// Free returns the number of free slots
func (p *Planner) Free() int { return len(p.blocks) - p.count }

// IsEmpty reports whether no block is queued
func (p *Planner) IsEmpty() bool { return p.count == 0 }

// IsFull reports whether AddLine would return ErrQueueFull
func (p *Planner) IsFull() bool { return p.count == len(p.blocks) }

// Oldest returns the block feeding the segment generator, or nil
func (p *Planner) Oldest() *Block {
	if p.count == 0 {
		return nil
	}
	return &p.blocks[p.read]
}

// Block returns the i-th queued block counting from the oldest, or nil
func (p *Planner) Block(i int) *Block {
	if i < 0 || i >= p.count {
		return nil
	}
	idx := (p.read + i) % len(p.blocks)
	return &p.blocks[idx]
}

// Discard drops the oldest block once it has been fully sliced
func (p *Planner) Discard() {
	if p.count == 0 {
		return
	}
	p.blocks[p.read] = Block{}
	p.read = p.next(p.read)
	p.count--
}

// Clear drops all queued blocks. The caller resyncs the position with
// SyncPosition from the real-time position.
func (p *Planner) Clear() {
	for i := range p.blocks {
		p.blocks[i] = Block{}
	}
	p.read, p.write, p.count = 0, 0, 0
	p.spindleRPM = 0
	p.coolant = 0
	p.lastDir = motion.Vector{}
}

// SyncPosition sets the position the next block starts from
func (p *Planner) SyncPosition(pos motion.Vector) {
	p.lastPos = pos
	p.lastDir = motion.Vector{}
}

// LastPosition returns the target of the newest block
func (p *Planner) LastPosition() motion.Vector {
	return p.lastPos
}

// AddLine queues a straight move to target. A block with a non-zero dwell
// does not move.
func (p *Planner) AddLine(target motion.Vector, data BlockData) error {
	if p.IsFull() {
		return ErrQueueFull
	}
	if data.Dwell > 0 {
		target = p.lastPos
	}

	delta := target.Sub(p.lastPos)
	distance := delta.Norm()

	b := Block{
		Target:        target,
		Distance:      distance,
		RequestedFeed: data.Feed,
		Flags:         data.Flags,
		Dwell:         data.Dwell,
		Spindle:       data.Spindle,
		Coolant:       data.Coolant,
		Line:          data.Line,
	}
	// no motion: entry and exit stay at zero
	if distance == 0 {
		p.spindleRPM = b.Spindle
		p.coolant = b.Coolant
		p.lastDir = motion.Vector{}
		p.push(b)
		return nil
	}

	b.Dir = delta.Scale(1 / distance)
	b.MaxSpeed = math.MaxFloat64
	b.Acceleration = math.MaxFloat64
	for i, d := range b.Dir {
		if d == 0 {
			continue
		}
		if d < 0 {
			b.DirBits |= 1 << i
		}
		if p.maxSpeed[i] <= 0 || p.accel[i] <= 0 {
			return ErrUnconfiguredAxis
		}
		ad := math.Abs(d)
		b.MaxSpeed = math.Min(b.MaxSpeed, p.maxSpeed[i]/ad)
		b.Acceleration = math.Min(b.Acceleration, p.accel[i]/ad)
	}
	b.AccelInv = 1 / b.Acceleration

	feed := b.MaxSpeed
	if b.Flags&FlagRapid == 0 {
		if data.Feed <= 0 {
			return ErrInvalidFeed
		}
		feed = math.Min(data.Feed/60, b.MaxSpeed)
	}
	b.FeedSqr = feed * feed
	b.RapidSqr = b.MaxSpeed * b.MaxSpeed

	// a turn of 90 degrees or more, or a start from rest, forces a full stop
	cosTheta := math.Max(b.Dir.Dot(p.lastDir), 0)
	if p.count == 0 {
		cosTheta = 0
	}

	p.lastDir = b.Dir
	p.spindleRPM = b.Spindle
	p.coolant = b.Coolant

	if cosTheta == 0 || b.Flags&FlagExactStop != 0 {
		p.push(b)
		return nil
	}

	prev := &p.blocks[p.prev(p.write)]
	// tan(theta/2) = sqrt(1-cos²)/(1+cos), in [0,1) for turns under 90 degrees
	angleFactor := math.Sqrt(1-math.Min(cosTheta*cosTheta, 1)) / (1 + cosTheta)
	if b.Flags&FlagContinuous != 0 {
		angleFactor = math.Max(angleFactor-p.g64, 0)
	}
	if angleFactor < 1 {
		junction := (1 - angleFactor) * (1 - angleFactor) * prev.FeedSqr
		b.EntryMaxSpeedSqr = math.Min(b.FeedSqr, junction)
	}

	p.push(b)
	p.recalculate()
	return nil
}

func (p *Planner) push(b Block) {
	p.blocks[p.write] = b
	p.lastPos = b.Target
	p.write = p.next(p.write)
	p.count++
}

// recalculate runs the backward then forward pass over the queue.
// The oldest block is in flight and its own entry speed is never touched.
func (p *Planner) recalculate() {
	first := p.read
	last := p.prev(p.write)
	if last == first {
		return
	}

	oldestNext := p.next(first)
	exitBefore := p.blocks[oldestNext].EntrySpeedSqr

	// backward pass: the newest block must be able to stop within its length
	b := &p.blocks[last]
	b.EntrySpeedSqr = math.Min(b.EntryMaxSpeedSqr, 2*b.Acceleration*b.Distance)

	next := last
	cur := p.prev(last)
	for cur != first && !p.blocks[cur].Optimal {
		blk := &p.blocks[cur]
		if blk.Dwell != 0 || blk.Distance == 0 {
			blk.EntrySpeedSqr = 0
		} else if blk.EntrySpeedSqr != blk.EntryMaxSpeedSqr {
			candidate := p.blocks[next].EntrySpeedSqr + 2*blk.Acceleration*blk.Distance
			blk.EntrySpeedSqr = math.Min(blk.EntryMaxSpeedSqr, candidate)
		}
		next = cur
		cur = p.prev(cur)
	}

	// forward pass: tighten entries that cannot be reached from the block before
	for cur != last {
		blk := &p.blocks[cur]
		nb := &p.blocks[next]
		if blk.EntrySpeedSqr < nb.EntrySpeedSqr {
			reachable := blk.EntrySpeedSqr + 2*blk.Acceleration*blk.Distance
			if reachable < nb.EntrySpeedSqr {
				nb.EntrySpeedSqr = reachable
				nb.Optimal = true
			}
		}
		cur = next
		next = p.next(cur)
	}

	if p.blocks[oldestNext].EntrySpeedSqr != exitBefore {
		p.notify()
	}
}

// Recalculate re-checks every junction against the speed reachable from the
// block before it, starting at the in-flight block. It is needed after the
// in-flight block was slowed outside the optimizer, by a hold or an override,
// and always rearms the segment generator.
func (p *Planner) Recalculate() {
	cur := p.read
	for i := 1; i < p.count; i++ {
		nxt := p.next(cur)
		blk, nb := &p.blocks[cur], &p.blocks[nxt]
		reachable := blk.EntrySpeedSqr + 2*blk.Acceleration*blk.Distance
		if reachable < nb.EntrySpeedSqr {
			nb.EntrySpeedSqr = reachable
			nb.Optimal = true
		}
		cur = nxt
	}
	p.notify()
}

func (p *Planner) notify() {
	if p.OnUpdate != nil {
		p.OnUpdate()
	}
}

func (p *Planner) feedScale(b *Block) (feed, rapid float64) {
	feed, rapid = 1, 1
	if !p.ovr.Enabled || b.Flags&FlagFeedOverride == 0 {
		return
	}
	if p.ovr.Feed != 100 {
		f := float64(p.ovr.Feed) * 0.01
		feed = f * f
	}
	if p.ovr.Rapid != 100 {
		r := float64(p.ovr.Rapid) * 0.01
		rapid = r * r
	}
	return
}

// EntrySpeedSqr returns the squared entry speed of the oldest block with
// overrides applied, never above its rapid speed.
func (p *Planner) EntrySpeedSqr() float64 {
	b := p.Oldest()
	if b == nil {
		return 0
	}
	feed, rapid := p.feedScale(b)
	return math.Min(b.EntrySpeedSqr*feed, b.RapidSqr*rapid)
}

// ExitSpeedSqr returns the squared exit speed of the oldest block: the entry
// speed of the block after it, with overrides, never above its rapid speed.
func (p *Planner) ExitSpeedSqr() float64 {
	if p.count < 2 {
		return 0
	}
	nb := &p.blocks[p.next(p.read)]
	feed, rapid := p.feedScale(nb)
	return math.Min(nb.EntrySpeedSqr*feed, nb.RapidSqr*rapid)
}

// TopSpeedSqr returns the highest squared speed the oldest block can reach
// over its remaining distance between its entry speed and exitSqr, limited
// by its target feed and rapid speed.
func (p *Planner) TopSpeedSqr(exitSqr float64) float64 {
	b := p.Oldest()
	if b == nil {
		return 0
	}

	delta := exitSqr - b.EntrySpeedSqr
	top := 2 * b.Acceleration * b.Distance
	switch {
	case top >= delta:
		top = (top + exitSqr + b.EntrySpeedSqr) / 2
	case exitSqr > b.EntrySpeedSqr:
		// cannot reach the exit speed even accelerating all the way
		top += b.EntrySpeedSqr
	default:
		top = b.EntrySpeedSqr
	}

	feed, rapid := p.feedScale(b)
	target := math.Min(b.FeedSqr*feed, b.RapidSqr*rapid)
	return math.Min(top, target)
}

// SpindleSpeed returns the output state for the oldest block, or for the
// last queued one when the queue is empty. throttle scales laser power.
func (p *Planner) SpindleSpeed(throttle float64) tool.State {
	rpm := p.spindleRPM
	ovr := uint8(100)
	if b := p.Oldest(); b != nil {
		rpm = b.Spindle
		if p.ovr.Enabled && b.Flags&FlagFeedOverride != 0 {
			ovr = p.ovr.Spindle
		}
	}
	return p.spindle.Duty(rpm, throttle, ovr)
}

// Coolant returns the coolant mask of the oldest block, or the last queued one
func (p *Planner) Coolant() uint8 {
	if b := p.Oldest(); b != nil {
		return b.Coolant
	}
	return p.coolant
}

// LaserMode reports whether the spindle output follows feed
func (p *Planner) LaserMode() bool {
	return p.spindle.LaserMode
}

// Overrides returns the current override state
func (p *Planner) Overrides() Overrides {
	return p.ovr
}

// ToggleOverrides enables or disables all overrides
func (p *Planner) ToggleOverrides() {
	p.ovr.Enabled = !p.ovr.Enabled
	p.notify()
}

func clampOverride(pct int) uint8 {
	return uint8(min(max(pct, FeedOverrideMin), FeedOverrideMax))
}

// SetFeedOverride sets the feed override in percent, clamped to [10,200]
func (p *Planner) SetFeedOverride(pct int) {
	v := clampOverride(pct)
	if p.ovr.Enabled && v != p.ovr.Feed {
		p.ovr.Feed = v
		p.notify()
	}
}

// SetRapidOverride sets the rapid override in percent, clamped to [1,100]
func (p *Planner) SetRapidOverride(pct int) {
	v := uint8(min(max(pct, 1), 100))
	if p.ovr.Enabled && v != p.ovr.Rapid {
		p.ovr.Rapid = v
		p.notify()
	}
}

// SetSpindleOverride sets the spindle override in percent, clamped to [10,200]
func (p *Planner) SetSpindleOverride(pct int) {
	if p.ovr.Enabled {
		p.ovr.Spindle = clampOverride(pct)
	}
}

// ResetFeedOverride restores the feed override to 100%
func (p *Planner) ResetFeedOverride() {
	if p.ovr.Enabled && p.ovr.Feed != 100 {
		p.notify()
	}
	p.ovr.Feed = 100
}

// ResetRapidOverride restores the rapid override to 100%
func (p *Planner) ResetRapidOverride() {
	if p.ovr.Enabled && p.ovr.Rapid != 100 {
		p.notify()
	}
	p.ovr.Rapid = 100
}

// ResetSpindleOverride restores the spindle override to 100%
func (p *Planner) ResetSpindleOverride() {
	p.ovr.Spindle = 100
}
