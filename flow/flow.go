// Package flow implements the flow register and comm stats (C7): per
// agent, per-direction counters of attempted vs. feasible message traffic.
package flow

import "disolv-sim/payload"

// Triple is the (agent_count, data_count, data_size) counter tuple
// tracked for each of attempted/feasible (§4.6).
type Triple struct {
	AgentCount int64
	DataCount  int64
	DataSize   int64
}

func (t *Triple) add(p *payload.Payload) {
	t.AgentCount++
	t.DataCount += int64(p.Metadata.TotalCount)
	t.DataSize += p.Metadata.TotalSize
}

// Direction holds the attempted/feasible split for one traffic direction.
type Direction struct {
	Attempted Triple
	Feasible  Triple
}

// Stats is the full per-agent register: incoming and outgoing directions.
type Stats struct {
	Incoming Direction
	Outgoing Direction
}

// RegisterOutgoingAttempt increments Outgoing.Attempted by the payload's
// (1, total_count, total_size), per §4.6.
func (s *Stats) RegisterOutgoingAttempt(p *payload.Payload) {
	s.Outgoing.Attempted.add(p)
}

// RegisterOutgoingFeasible increments Outgoing.Feasible the same way,
// called only once the network has confirmed the transmit is feasible.
func (s *Stats) RegisterOutgoingFeasible(p *payload.Payload) {
	s.Outgoing.Feasible.add(p)
}

// RegisterIncoming registers a batch of received payloads against the
// incoming direction: every successfully delivered payload is by
// definition both attempted and feasible from the receiver's viewpoint.
func (s *Stats) RegisterIncoming(payloads []*payload.Payload) {
	for _, p := range payloads {
		s.Incoming.Attempted.add(p)
		s.Incoming.Feasible.add(p)
	}
}

// Reset zeros all four triples; called at the beginning of each agent's
// phase one (§3 Bucket invariants).
func (s *Stats) Reset() {
	*s = Stats{}
}

// SuccessRate is feasible.data_count / max(attempted.data_count, 1),
// defined on the outgoing direction per §4.6.
func (s *Stats) SuccessRate() float64 {
	attempted := s.Outgoing.Attempted.DataCount
	if attempted < 1 {
		attempted = 1
	}
	return float64(s.Outgoing.Feasible.DataCount) / float64(attempted)
}
