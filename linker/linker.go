// Package linker implements the link catalog (C5): streamed, per-tick
// neighbor lists for one (source kind, target kind) pair.
package linker

import (
	"disolv-sim/agentcore"
	"disolv-sim/agentid"
	"disolv-sim/tick"
)

// Link is a directional, single-hop neighbor relation (§3).
type Link struct {
	Target   agentid.ID
	Distance float64
	Load     *float64
}

// Row is one streamed input record (§6: "time_step, agent_id, target_id,
// distance, load_factor").
type Row struct {
	TimeStep tick.Tick
	AgentID  agentid.ID
	TargetID agentid.ID
	Distance float64
	Load     *float64
}

// Reader is implemented by whatever reads the link-file row groups; the
// offline link pre-computer that produces the file is out of scope (§1),
// so this is a narrow interface the simulation depends on rather than a
// concrete CSV/Parquet reader.
type Reader interface {
	// Next returns the next row-group (all rows sharing one time_step) or
	// ok=false when the stream is exhausted.
	Next() (rows []Row, ok bool)
}

// Linker answers "candidate links from agent at step t" for one
// (source kind, target kind) pair (§4.4).
type Linker struct {
	SourceKind Kind
	TargetKind Kind
	reader     Reader
	current    map[agentid.ID][]Link
	pending    []Row
}

// Kind aliases agentcore.Kind to keep this package's public surface
// self-describing without importing agentcore's whole agent contract.
type Kind = agentcore.Kind

// New constructs a Linker for one kind pair, backed by reader.
func New(sourceKind, targetKind Kind, reader Reader) *Linker {
	return &Linker{SourceKind: sourceKind, TargetKind: targetKind, reader: reader, current: map[agentid.ID][]Link{}}
}

// Init loads the first batch, used by Bucket.Initialize.
func (l *Linker) Init(_ tick.Tick) {
	l.advance()
}

// StreamInput advances to the next batch if the reader has one (§4.4
// "Streaming").
func (l *Linker) StreamInput() {
	l.advance()
}

func (l *Linker) advance() {
	rows, ok := l.reader.Next()
	if !ok {
		return
	}
	l.pending = rows
	l.current = make(map[agentid.ID][]Link, len(rows))
	for _, r := range rows {
		link := Link{Target: r.TargetID, Distance: r.Distance, Load: r.Load}
		l.current[r.AgentID] = append(l.current[r.AgentID], link)
	}
}

// LinksOf returns the candidate links for sourceID at the current tick,
// or ok=false if none were streamed (§4.4 "links_of").
func (l *Linker) LinksOf(sourceID agentid.ID) (links []Link, ok bool) {
	links, ok = l.current[sourceID]
	return
}
