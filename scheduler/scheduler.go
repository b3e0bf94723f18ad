// Package scheduler implements the deterministic, ordered, multi-phase
// scheduler (C11): activation caching, priority-queue dispatch, and the
// five-phase tick algorithm described in §4.1.
package scheduler

import (
	"container/heap"
	"fmt"
	"sort"

	"disolv-sim/agentcore"
	"disolv-sim/agentid"
	"disolv-sim/bucket"
	"disolv-sim/tick"
)

// Scheduler is the narrow capability set every variant implements (§4.1,
// design note "Generic-over-agent scheduler").
type Scheduler interface {
	Initialize()
	Activate()
	Trigger() tick.Tick
	Terminate()
}

// entry is one (agentid, order) pair held in the priority queue.
type entry struct {
	id    agentid.ID
	order agentcore.Order
	index int
}

// pqueue is a container/heap.Interface min-heap ordered by (order, id),
// giving ascending-priority pops with deterministic AgentId tie-breaking
// (§3 AgentOrder, §4.1 "Priority ties must be broken by ascending
// AgentId"). No pack example carries a third-party heap/priority-queue
// library, so this one piece leans on the stdlib container/heap package
// the way it's meant to be used — see DESIGN.md.
type pqueue []*entry

func (q pqueue) Len() int { return len(q) }
func (q pqueue) Less(i, j int) bool {
	if q[i].order != q[j].order {
		return q[i].order < q[j].order
	}
	return agentid.Less(q[i].id, q[j].id)
}
func (q pqueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *pqueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *pqueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// PriorityScheduler is the C11 default: a container/heap-backed priority
// queue, drained and rebuilt every tick (§4.1).
type PriorityScheduler struct {
	Bucket *bucket.Bucket
	Agents map[agentid.ID]agentcore.Agent

	Duration          tick.Tick
	StepSize          tick.Tick
	StreamingInterval tick.Tick
	OutputInterval    tick.Tick

	now            tick.Tick
	streamingStep  tick.Tick
	outputStep     tick.Tick
	queue          pqueue
	activationCache map[tick.Tick][]agentid.ID
}

// NewPriorityScheduler constructs a scheduler over the given agent set.
func NewPriorityScheduler(b *bucket.Bucket, agents map[agentid.ID]agentcore.Agent, duration, stepSize, streamingInterval, outputInterval tick.Tick) *PriorityScheduler {
	return &PriorityScheduler{
		Bucket:            b,
		Agents:            agents,
		Duration:          duration,
		StepSize:          stepSize,
		StreamingInterval: streamingInterval,
		OutputInterval:    outputInterval,
		activationCache:   map[tick.Tick][]agentid.ID{},
	}
}

// Now reports the scheduler's current tick.
func (s *PriorityScheduler) Now() tick.Tick { return s.now }

// agentOf looks up an agent, panicking on a missing id — a scheduler/
// bucket invariant violation is unrecoverable (§4.1 "Failure semantics").
func (s *PriorityScheduler) agentOf(id agentid.ID) agentcore.Agent {
	a, ok := s.Agents[id]
	if !ok {
		panic(fmt.Sprintf("scheduler: agent %s missing from core map", id))
	}
	return a
}

func (s *PriorityScheduler) addToQueue(id agentid.ID, order agentcore.Order) {
	heap.Push(&s.queue, &entry{id: id, order: order})
}

// Initialize computes every agent's first activation tick and invokes
// bucket.Initialize (§4.1 "Initialization").
func (s *PriorityScheduler) Initialize() {
	for id, a := range s.Agents {
		if !a.HasNextActivation() {
			continue
		}
		at := a.TimeOfActivation()
		s.activationCache[at] = append(s.activationCache[at], id)
	}
	s.Bucket.Initialize(s.now)
}

// Activate pulls every agent whose activation-cache entry equals now,
// invokes Activate exactly once, and inserts it into the queue (§4.1
// "Activation").
func (s *PriorityScheduler) Activate() {
	ids, ok := s.activationCache[s.now]
	if !ok {
		return
	}
	delete(s.activationCache, s.now)
	for _, id := range ids {
		a := s.agentOf(id)
		a.Activate(s.Bucket)
		s.addToQueue(id, a.Order())
	}
}

// Trigger advances one step, performing the exact nine-step algorithm in
// §4.1.
func (s *PriorityScheduler) Trigger() tick.Tick {
	s.Bucket.BeforeAgents(s.now)

	if s.now == s.streamingStep {
		s.Bucket.StreamInput()
		s.streamingStep = s.streamingStep.Add(s.StreamingInterval)
	}

	if s.now == s.outputStep {
		s.Bucket.StreamOutput()
		s.outputStep = s.outputStep.Add(s.OutputInterval)
	}

	if s.queue.Len() == 0 {
		s.Bucket.AfterAgents()
		s.now = s.now.Add(s.StepSize)
		return s.now
	}

	// Drain the queue into an ordered list, ascending by (order, id).
	active := make([]agentid.ID, 0, s.queue.Len())
	for s.queue.Len() > 0 {
		e := heap.Pop(&s.queue).(*entry)
		active = append(active, e.id)
	}

	runPhases(s.Bucket, active, s.agentOf)

	s.Bucket.AfterAgents()

	for _, id := range active {
		a := s.agentOf(id)
		if !a.IsDeactivated(s.now) {
			s.addToQueue(id, a.Order())
		}
		if a.HasNextActivation() {
			at := a.TimeOfActivation()
			s.activationCache[at] = append(s.activationCache[at], id)
		}
	}

	s.now = s.now.Add(s.StepSize)
	return s.now
}

// Terminate forwards to the bucket (§4.1).
func (s *PriorityScheduler) Terminate() {
	s.Bucket.Terminate()
}

// runReverse walks ids highest-order-first: active[] is ascending, so
// this is a plain reverse iteration (§4.1 phase 1/3/5).
func runReverse(active []agentid.ID, fn func(agentid.ID)) {
	for i := len(active) - 1; i >= 0; i-- {
		fn(active[i])
	}
}

// runForward walks ids lowest-order-first, i.e. in the order they were
// drained from the queue (§4.1 phase 2/4).
func runForward(active []agentid.ID, fn func(agentid.ID)) {
	for _, id := range active {
		fn(id)
	}
}

// runPhases executes the five alternating-direction phases over an
// already-ordered active list, invoking the matching AfterStage* hook
// between each (§4.1). Shared by both scheduler variants so the dispatch
// order lives in exactly one place.
func runPhases(b *bucket.Bucket, active []agentid.ID, agentOf func(agentid.ID) agentcore.Agent) {
	runReverse(active, func(id agentid.ID) { agentOf(id).StageOne(b) })
	b.AfterStageOne()

	runForward(active, func(id agentid.ID) { agentOf(id).StageTwoReverse(b) })
	b.AfterStageTwo()

	runReverse(active, func(id agentid.ID) { agentOf(id).StageThree(b) })
	b.AfterStageThree()

	runForward(active, func(id agentid.ID) { agentOf(id).StageFourReverse(b) })
	b.AfterStageFour()

	runReverse(active, func(id agentid.ID) { agentOf(id).StageFive(b) })
}

// mapEntry is one (id, order) pair held by MapScheduler's insertion-ordered
// slice.
type mapEntry struct {
	id    agentid.ID
	order agentcore.Order
}

// MapScheduler is the C11 alternative for very large agent populations
// (design note "scaling to >10^5 agents"): an insertion-ordered slice that
// is only re-sorted when an agent is activated, trading the heap's
// per-tick O(log n) push/pop for an O(n log n) sort that runs only on
// activation churn, not every tick.
type MapScheduler struct {
	Bucket *bucket.Bucket
	Agents map[agentid.ID]agentcore.Agent

	Duration          tick.Tick
	StepSize          tick.Tick
	StreamingInterval tick.Tick
	OutputInterval    tick.Tick

	now             tick.Tick
	streamingStep   tick.Tick
	outputStep      tick.Tick
	active          []mapEntry
	activationCache map[tick.Tick][]agentid.ID
	dirty           bool
}

// NewMapScheduler constructs a MapScheduler over the given agent set.
func NewMapScheduler(b *bucket.Bucket, agents map[agentid.ID]agentcore.Agent, duration, stepSize, streamingInterval, outputInterval tick.Tick) *MapScheduler {
	return &MapScheduler{
		Bucket:            b,
		Agents:            agents,
		Duration:          duration,
		StepSize:          stepSize,
		StreamingInterval: streamingInterval,
		OutputInterval:    outputInterval,
		activationCache:   map[tick.Tick][]agentid.ID{},
	}
}

// Now reports the scheduler's current tick.
func (s *MapScheduler) Now() tick.Tick { return s.now }

func (s *MapScheduler) agentOf(id agentid.ID) agentcore.Agent {
	a, ok := s.Agents[id]
	if !ok {
		panic(fmt.Sprintf("scheduler: agent %s missing from core map", id))
	}
	return a
}

// Initialize mirrors PriorityScheduler.Initialize.
func (s *MapScheduler) Initialize() {
	for id, a := range s.Agents {
		if !a.HasNextActivation() {
			continue
		}
		at := a.TimeOfActivation()
		s.activationCache[at] = append(s.activationCache[at], id)
	}
	s.Bucket.Initialize(s.now)
}

// Activate appends newly-activated agents and marks the list dirty so the
// next Trigger re-sorts before dispatch, rather than keeping it sorted on
// every insertion.
func (s *MapScheduler) Activate() {
	ids, ok := s.activationCache[s.now]
	if !ok {
		return
	}
	delete(s.activationCache, s.now)
	for _, id := range ids {
		a := s.agentOf(id)
		a.Activate(s.Bucket)
		s.active = append(s.active, mapEntry{id: id, order: a.Order()})
		s.dirty = true
	}
}

func (s *MapScheduler) sortIfDirty() {
	if !s.dirty {
		return
	}
	sort.Slice(s.active, func(i, j int) bool {
		if s.active[i].order != s.active[j].order {
			return s.active[i].order < s.active[j].order
		}
		return agentid.Less(s.active[i].id, s.active[j].id)
	})
	s.dirty = false
}

// Trigger runs the same nine-step algorithm as PriorityScheduler, reading
// its active set from the re-sorted slice instead of draining a heap.
func (s *MapScheduler) Trigger() tick.Tick {
	s.Bucket.BeforeAgents(s.now)

	if s.now == s.streamingStep {
		s.Bucket.StreamInput()
		s.streamingStep = s.streamingStep.Add(s.StreamingInterval)
	}

	if s.now == s.outputStep {
		s.Bucket.StreamOutput()
		s.outputStep = s.outputStep.Add(s.OutputInterval)
	}

	if len(s.active) == 0 {
		s.Bucket.AfterAgents()
		s.now = s.now.Add(s.StepSize)
		return s.now
	}

	s.sortIfDirty()
	ids := make([]agentid.ID, len(s.active))
	for i, e := range s.active {
		ids[i] = e.id
	}

	runPhases(s.Bucket, ids, s.agentOf)
	s.Bucket.AfterAgents()

	remaining := s.active[:0]
	for _, e := range s.active {
		a := s.agentOf(e.id)
		if !a.IsDeactivated(s.now) {
			remaining = append(remaining, mapEntry{id: e.id, order: a.Order()})
		}
		if a.HasNextActivation() {
			at := a.TimeOfActivation()
			s.activationCache[at] = append(s.activationCache[at], e.id)
		}
	}
	s.active = remaining

	s.now = s.now.Add(s.StepSize)
	return s.now
}

// Terminate forwards to the bucket.
func (s *MapScheduler) Terminate() {
	s.Bucket.Terminate()
}
