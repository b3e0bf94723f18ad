// Package lake implements the data lake (C3): a per-tick, per-recipient
// payload inbox. The normal channel and sidelink channel are API-disjoint
// but share the same backing storage for cache locality, per §4.3.
package lake

import (
	"disolv-sim/agentid"
	"disolv-sim/payload"
)

// channel is which of the two disjoint keyspaces a payload was deposited
// under.
type channel int

const (
	normal channel = iota
	sidelink
)

type key struct {
	id agentid.ID
	ch channel
}

// Lake is the shared per-tick mailbox owned exclusively by the bucket
// (§3 Ownership).
type Lake struct {
	inbox map[key][]*payload.Payload
}

// New returns an empty Lake.
func New() *Lake {
	return &Lake{inbox: map[key][]*payload.Payload{}}
}

// AddPayloadTo appends p to id's normal inbox, creating it if absent.
func (l *Lake) AddPayloadTo(id agentid.ID, p *payload.Payload) {
	k := key{id: id, ch: normal}
	l.inbox[k] = append(l.inbox[k], p)
}

// AddSidelinkPayloadTo mirrors AddPayloadTo on the sidelink channel.
func (l *Lake) AddSidelinkPayloadTo(id agentid.ID, p *payload.Payload) {
	k := key{id: id, ch: sidelink}
	l.inbox[k] = append(l.inbox[k], p)
}

// PayloadsFor returns and removes id's normal-channel payloads, or an
// empty slice if none arrived this tick.
func (l *Lake) PayloadsFor(id agentid.ID) []*payload.Payload {
	return l.take(key{id: id, ch: normal})
}

// SidelinkPayloadsFor mirrors PayloadsFor on the sidelink channel.
func (l *Lake) SidelinkPayloadsFor(id agentid.ID) []*payload.Payload {
	return l.take(key{id: id, ch: sidelink})
}

func (l *Lake) take(k key) []*payload.Payload {
	payloads := l.inbox[k]
	delete(l.inbox, k)
	return payloads
}

// CleanPayloads drops every payload still present, regardless of channel,
// enforcing the invariant that a payload not lifted during its deposit
// tick does not survive into the next one (§3, §4.3, scenario S6). Called
// from Bucket.BeforeAgents.
func (l *Lake) CleanPayloads() {
	for k := range l.inbox {
		delete(l.inbox, k)
	}
}

// IsEmptyFor reports whether id's normal channel currently holds nothing,
// used by tests asserting invariant 3 (lake drained after AfterAgents).
func (l *Lake) IsEmptyFor(id agentid.ID) bool {
	return len(l.inbox[key{id: id, ch: normal}]) == 0
}
