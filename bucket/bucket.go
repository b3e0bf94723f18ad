// Package bucket implements the shared per-tick environment (C9): the
// owner of the data lake, geospatial caches, link catalogs, network
// slices, the field index, and the results sink, exposed to agents only
// through method calls scoped to the phase the scheduler is running.
package bucket

import (
	"fmt"

	"disolv-sim/agentcore"
	"disolv-sim/agentid"
	"disolv-sim/field"
	"disolv-sim/flow"
	"disolv-sim/geo"
	"disolv-sim/lake"
	"disolv-sim/linker"
	"disolv-sim/netslice"
	"disolv-sim/payload"
	"disolv-sim/tick"
)

// AgentInfo is the bucket's view of one agent's identity and stats,
// exposed via AgentDataOf/UpdateAgentDataOf (§4.2).
type AgentInfo struct {
	payload.RecipientInfo
	MapState geo.MapState
}

// ResultSink is the bucket's only contact with output writing; the
// concrete implementation (package output) is an ambient/external
// concern per §1, so the bucket only depends on this narrow interface.
type ResultSink interface {
	AddPosition(t tick.Tick, id agentid.ID, state geo.MapState)
	AddRxCounts(t tick.Tick, id agentid.ID, stats flow.Stats)
	AddTxRecord(t tick.Tick, id agentid.ID, metrics netslice.TxMetrics, selected agentid.ID, distance float64, dataCount int64, linkFound bool, failReason string)
	Flush(t tick.Tick)
	Close() error
}

// mapperEntry pairs a Mapper with the agent kind it serves.
type mapperEntry struct {
	kind   agentcore.Kind
	mapper *geo.Mapper
}

// Bucket owns every per-tick collaborator and exposes them to agents
// (§4.2). It has no internal state machine: every transition happens via
// the lifecycle hooks the scheduler calls in fixed order (§4.2 "State
// machine").
type Bucket struct {
	Step tick.Tick

	Field *field.Field

	mappers      []mapperEntry
	linkers      []*linker.Linker
	classToKind  map[agentcore.Class]agentcore.Kind
	lake         *lake.Lake
	slices       map[string]*netslice.Slice
	flowStats    map[agentid.ID]*flow.Stats
	agentData    map[agentid.ID]AgentInfo
	sink         ResultSink

	streamingInterval tick.Tick
	outputInterval    tick.Tick
}

// New constructs a Bucket. classToKind drives link-catalog dispatch:
// LinkOptionsFor maps a target class to a target kind via this table
// before searching the linker holder (§4.4).
func New(f *field.Field, classToKind map[agentcore.Class]agentcore.Kind, sink ResultSink, streamingInterval, outputInterval tick.Tick) *Bucket {
	return &Bucket{
		Field:             f,
		classToKind:       classToKind,
		lake:              lake.New(),
		slices:            map[string]*netslice.Slice{},
		flowStats:         map[agentid.ID]*flow.Stats{},
		agentData:         map[agentid.ID]AgentInfo{},
		sink:              sink,
		streamingInterval: streamingInterval,
		outputInterval:    outputInterval,
	}
}

// AddMapper registers a geospatial mapper for one agent kind.
func (b *Bucket) AddMapper(kind agentcore.Kind, m *geo.Mapper) {
	b.mappers = append(b.mappers, mapperEntry{kind: kind, mapper: m})
}

// AddLinker registers a link catalog for one (source kind, target kind)
// pair.
func (b *Bucket) AddLinker(l *linker.Linker) {
	b.linkers = append(b.linkers, l)
}

// AddSlice registers a network slice under its name.
func (b *Bucket) AddSlice(s *netslice.Slice) {
	b.slices[s.Name] = s
}

// Initialize loads static maps, links, and resets the step clock (§4.2
// "initialize(tick)").
func (b *Bucket) Initialize(t tick.Tick) {
	b.Step = t
	for _, m := range b.mappers {
		m.mapper.Init(t)
	}
	for _, l := range b.linkers {
		l.Init(t)
	}
}

// BeforeAgents sets step, resets network slices, drains stale payloads
// from the data lake, and advances the map caches for the upcoming tick
// (§4.2). Link catalogs are not touched here: they keep their current
// batch until StreamInput. Ordering matters: the lake must be cleaned
// before position caches are refreshed, so a payload left over from the
// prior tick can never be read alongside this tick's positions.
func (b *Bucket) BeforeAgents(t tick.Tick) {
	b.Step = t
	for _, s := range b.slices {
		s.Reset()
	}
	b.lake.CleanPayloads()
	for _, m := range b.mappers {
		m.mapper.BeforeAgentStep(t)
	}
	if b.Field != nil {
		b.Field.Reset()
	}
}

// PlaceInField indexes id's current position into the spatial field, used
// by domain agents during stage one once they've read their own position
// (see v2x.Device.StageOne). Kept separate from BeforeAgents because the
// bucket invariant "position cache for tick t is populated before any
// agent's phase-1 runs at t" (§3) only guarantees the mapper snapshot is
// ready, not that every agent has been visited yet.
func (b *Bucket) PlaceInField(id agentid.ID, state geo.MapState) {
	if b.Field != nil {
		b.Field.Place(id, state)
	}
}

// StreamInput cues the next streamed file chunks (§4.2).
func (b *Bucket) StreamInput() {
	for _, m := range b.mappers {
		m.mapper.StreamInput()
	}
	for _, l := range b.linkers {
		l.StreamInput()
	}
}

// StreamOutput flushes result buffers (§4.2).
func (b *Bucket) StreamOutput() {
	if b.sink != nil {
		b.sink.Flush(b.Step)
	}
}

// AfterAgents, AfterStageOne..Four are bookkeeping hooks the scheduler
// invokes between phases (§4.2). The core engine has nothing to normalize
// at this level, so they are no-ops.
func (b *Bucket) AfterAgents()    {}
func (b *Bucket) AfterStageOne()  {}
func (b *Bucket) AfterStageTwo()  {}
func (b *Bucket) AfterStageThree() {}
func (b *Bucket) AfterStageFour() {}

// Terminate flushes and closes the results sink (§4.2).
func (b *Bucket) Terminate() {
	if b.sink != nil {
		b.sink.Close()
	}
}

// PositionsFor returns an agent's position at the current tick (§4.2).
func (b *Bucket) PositionsFor(id agentid.ID, kind agentcore.Kind) (geo.MapState, bool) {
	for _, m := range b.mappers {
		if m.kind == kind {
			return m.mapper.MapStateOf(id)
		}
	}
	return geo.MapState{}, false
}

// LinkOptionsFor returns candidate links from id toward targetClass,
// resolving targetClass to a target kind via the class-to-kind table
// (§4.4).
func (b *Bucket) LinkOptionsFor(id agentid.ID, sourceKind agentcore.Kind, targetClass agentcore.Class) ([]linker.Link, bool) {
	targetKind, ok := b.classToKind[targetClass]
	if !ok {
		return nil, false
	}
	for _, l := range b.linkers {
		if l.SourceKind == sourceKind && l.TargetKind == targetKind {
			return l.LinksOf(id)
		}
	}
	return nil, false
}

// StatsFor returns the comm stats register for id, creating a fresh one
// if this is the agent's first tick (§4.2).
func (b *Bucket) StatsFor(id agentid.ID) *flow.Stats {
	s, ok := b.flowStats[id]
	if !ok {
		s = &flow.Stats{}
		b.flowStats[id] = s
	}
	return s
}

// UpdateStatsOf replaces id's published comm stats (§4.2
// "update_stats_of").
func (b *Bucket) UpdateStatsOf(id agentid.ID, stats flow.Stats) {
	s := b.StatsFor(id)
	*s = stats
}

// AgentDataOf returns the bucket's cached identity/stats info for id
// (§4.2 "agent_data_of").
func (b *Bucket) AgentDataOf(id agentid.ID) (AgentInfo, bool) {
	info, ok := b.agentData[id]
	return info, ok
}

// UpdateAgentDataOf replaces id's cached identity/stats info (§4.2
// "update_agent_data_of").
func (b *Bucket) UpdateAgentDataOf(id agentid.ID, info AgentInfo) {
	b.agentData[id] = info
}

// Lake exposes the data lake to agents, scoped to the calling phase.
func (b *Bucket) Lake() *lake.Lake { return b.lake }

// RecordPosition forwards one agent's current position to the results
// sink, a no-op if no sink was configured (§6 "Positions").
func (b *Bucket) RecordPosition(id agentid.ID, state geo.MapState) {
	if b.sink != nil {
		b.sink.AddPosition(b.Step, id, state)
	}
}

// RecordRxCounts forwards one agent's accumulated comm stats to the
// results sink (§6 "Rx counts").
func (b *Bucket) RecordRxCounts(id agentid.ID, stats flow.Stats) {
	if b.sink != nil {
		b.sink.AddRxCounts(b.Step, id, stats)
	}
}

// RecordTx forwards one transmit attempt's outcome to the results sink
// (§6 "Tx data").
func (b *Bucket) RecordTx(id agentid.ID, metrics netslice.TxMetrics, selected agentid.ID, distance float64, dataCount int64, linkFound bool, failReason string) {
	if b.sink != nil {
		b.sink.AddTxRecord(b.Step, id, metrics, selected, distance, dataCount, linkFound, failReason)
	}
}

// Transfer runs payload p through the named slice and records the
// feasible outgoing count on sender's stats only when the transfer
// succeeds (§4.7, §4.6). On success the payload is deposited into the
// data lake under targetID; on failure it is dropped silently, observable
// only through the returned TxMetrics (§7).
func (b *Bucket) Transfer(sliceName string, senderID, targetID agentid.ID, distance float64, p *payload.Payload) netslice.TxMetrics {
	slice, ok := b.slices[sliceName]
	if !ok {
		panic(fmt.Sprintf("bucket: unknown network slice %q", sliceName))
	}

	sender := b.StatsFor(senderID)
	sender.RegisterOutgoingAttempt(p)

	metrics := slice.Transfer(distance, p)
	if metrics.Status == netslice.Ok {
		sender.RegisterOutgoingFeasible(p)
		b.lake.AddPayloadTo(targetID, p)
	}
	return metrics
}
