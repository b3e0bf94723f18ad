// Package geo implements the geospatial map (C4): a per-tick position
// cache populated from a streamed mobility trace.
package geo

import (
	"disolv-sim/agentid"
	"disolv-sim/tick"
)

// MapState is one agent's position (and optional velocity/z/road) at a
// tick (§3 "Position / MapState").
type MapState struct {
	X, Y     float64
	Velocity *float64
	Z        *float64
	RoadID   *string
}

// Row is one streamed mobility-file record (§6: "time_step, agent_id, x,
// y, velocity").
type Row struct {
	TimeStep tick.Tick
	AgentID  agentid.ID
	X, Y     float64
	Velocity *float64
	Z        *float64
	RoadID   *string
}

// Reader is implemented by whatever reads the mobility-file row groups.
type Reader interface {
	Next() (rows []Row, ok bool)
}

// Mapper caches the current tick's positions, answering "position of
// agent at step t" in O(1) and detecting missing updates (§4.4).
type Mapper struct {
	Kind    string
	reader  Reader
	current map[agentid.ID]MapState
	last    map[agentid.ID]MapState
}

// New constructs a Mapper for one agent kind, backed by reader.
func New(kind string, reader Reader) *Mapper {
	return &Mapper{Kind: kind, reader: reader, current: map[agentid.ID]MapState{}, last: map[agentid.ID]MapState{}}
}

// Init loads the first batch, used by Bucket.Initialize.
func (m *Mapper) Init(_ tick.Tick) {
	m.advance()
}

// BeforeAgentStep populates the snapshot for the tick about to run,
// guaranteeing the bucket invariant "position cache for tick t is
// populated before any agent's phase-1 runs at t" (§3).
func (m *Mapper) BeforeAgentStep(_ tick.Tick) {
	for id, state := range m.current {
		m.last[id] = state
	}
}

// StreamInput advances to the next mobility batch if present (§4.4
// "Streaming").
func (m *Mapper) StreamInput() {
	m.advance()
}

func (m *Mapper) advance() {
	rows, ok := m.reader.Next()
	if !ok {
		return
	}
	m.current = make(map[agentid.ID]MapState, len(rows))
	for _, r := range rows {
		m.current[r.AgentID] = MapState{X: r.X, Y: r.Y, Velocity: r.Velocity, Z: r.Z, RoadID: r.RoadID}
	}
}

// MapStateOf removes and returns the recipient's entry, or falls back to
// the agent's previous state if this tick produced no update (§4.4 "if
// absent, the agent retains its previous state").
func (m *Mapper) MapStateOf(id agentid.ID) (state MapState, ok bool) {
	if state, ok = m.current[id]; ok {
		delete(m.current, id)
		m.last[id] = state
		return state, true
	}
	state, ok = m.last[id]
	return state, ok
}
