// Package agentcore defines the five-phase agent contract (C10) that every
// domain agent (v2x.Device, fl.Client, fl.Server) implements, plus the
// taxonomy (Kind/Class/Order) the rest of the simulator dispatches on.
package agentcore

import (
	"fmt"

	"disolv-sim/agentid"
	"disolv-sim/tick"
)

// Kind is the coarse taxonomy tag that drives link-catalog lookup.
type Kind string

// Class refines a Kind and drives routing/action-table selection.
type Class string

// Order is the priority-queue key. Agents with equal Order are broken by
// ascending AgentId, never randomly (§4.1 failure semantics).
type Order uint32

// None is the zero-value Class used by agents that don't need refinement.
const None Class = ""

// Orderable is implemented by anything the scheduler can place in its queue.
type Orderable interface {
	Order() Order
}

// Activatable is the agent lifecycle contract (§3 Lifecycle).
type Activatable interface {
	// Activate is invoked exactly once per activation window, when the
	// agent's time-of-activation arrives.
	Activate(bucket any)
	// IsDeactivated is evaluated after every tick the agent ran; once true
	// the agent is pulled out of the active queue.
	IsDeactivated(step tick.Tick) bool
	// HasNextActivation reports whether the agent has a future activation
	// window to be cached for later.
	HasNextActivation() bool
	// TimeOfActivation returns the next tick at which Activate should run.
	// Only meaningful when HasNextActivation is true, or before the first
	// activation.
	TimeOfActivation() tick.Tick
}

// Agent is the full five-phase contract (§4.9). Bucket is passed as `any`
// here to break the import cycle with package bucket; the scheduler passes
// its *bucket.Bucket directly, and domain types (v2x.Device, fl.Client,
// fl.Server) type-assert it back to *bucket.Bucket inside each stage
// method.
type Agent interface {
	Orderable
	Activatable
	ID() agentid.ID
	StageOne(bucket any)
	StageTwoReverse(bucket any)
	StageThree(bucket any)
	StageFourReverse(bucket any)
	StageFive(bucket any)
}

// PowerWindow is one on/off pair in an agent's power schedule.
type PowerWindow struct {
	On  tick.Tick
	Off tick.Tick
}

// PowerSchedule holds the on/off windows read from the power-schedule input
// file (§6: "two parallel arrays of on- and off-ticks").
type PowerSchedule struct {
	Windows []PowerWindow
	cursor  int
}

// NewPowerSchedule builds a schedule from parallel on/off tick arrays,
// panicking if the arrays are misaligned — a misaligned schedule is a
// fatal configuration error per §7 ("Missing power schedule entry").
func NewPowerSchedule(onTicks, offTicks []tick.Tick) *PowerSchedule {
	if len(onTicks) != len(offTicks) {
		panic(fmt.Sprintf("power schedule arrays misaligned: %d on vs %d off", len(onTicks), len(offTicks)))
	}
	windows := make([]PowerWindow, len(onTicks))
	for i := range onTicks {
		windows[i] = PowerWindow{On: onTicks[i], Off: offTicks[i]}
	}
	return &PowerSchedule{Windows: windows}
}

// FirstActivation returns the first on-tick, or ok=false if the agent never
// activates.
func (p *PowerSchedule) FirstActivation() (t tick.Tick, ok bool) {
	if len(p.Windows) == 0 {
		return 0, false
	}
	return p.Windows[0].On, true
}

// Advance moves the cursor past the current window and reports whether a
// subsequent activation window exists.
func (p *PowerSchedule) Advance() (next tick.Tick, ok bool) {
	p.cursor++
	if p.cursor >= len(p.Windows) {
		return 0, false
	}
	return p.Windows[p.cursor].On, true
}

// CurrentOff returns the off-tick of the window the cursor currently sits
// in, used by IsDeactivated checks.
func (p *PowerSchedule) CurrentOff() tick.Tick {
	if p.cursor >= len(p.Windows) {
		return tick.Max
	}
	return p.Windows[p.cursor].Off
}

// Base is embedded by every domain agent to provide the bookkeeping shared
// by all of them: id, order, and power-schedule-driven activation. Domain
// types override StageOne..StageFive; Base supplies ID/Order/Activate/
// IsDeactivated, and HasNextActivation/TimeOfActivation come from
// NextActivation, embedded alongside it, so domain structs don't repeat
// that plumbing (mirrors the teacher's small-struct-plus-methods
// style rather than an inheritance hierarchy, per design note).
type Base struct {
	Id       agentid.ID
	Ord      Order
	Kind     Kind
	Class    Class
	Schedule *PowerSchedule
	active   bool
}

func (b *Base) ID() agentid.ID { return b.Id }
func (b *Base) Order() Order   { return b.Ord }

// Activate marks the agent active. Domain types call this via Base before
// doing their own first-activation setup.
func (b *Base) Activate(_ any) {
	b.active = true
}

// IsDeactivated reports whether the current power window has ended,
// including when Deactivate has already closed it.
func (b *Base) IsDeactivated(step tick.Tick) bool {
	if b.Schedule == nil {
		return false
	}
	if !b.active {
		return true
	}
	return !step.Before(b.Schedule.CurrentOff())
}

// Deactivate flips the agent out of the active state and advances its
// power schedule to the next window.
func (b *Base) Deactivate() (next tick.Tick, hasNext bool) {
	b.active = false
	return b.Schedule.Advance()
}

// HasNextActivation and TimeOfActivation are convenience wrappers used by
// agents whose schedule was already advanced via Deactivate; kept in this
// separate value, which domain agents embed next to Base, so they need
// only store the returned values.
type NextActivation struct {
	at tick.Tick
	ok bool
}

func (n NextActivation) HasNextActivation() bool    { return n.ok }
func (n NextActivation) TimeOfActivation() tick.Tick { return n.at }

// NewNextActivation wraps an (at, ok) pair as returned by PowerSchedule.
func NewNextActivation(at tick.Tick, ok bool) NextActivation {
	return NextActivation{at: at, ok: ok}
}
