// Package payload implements the typed message and action model (C2) and
// the forwarding engine described in §4.8: composing units, assigning
// actions before transmission, completing actions on receipt, and
// filtering which received units a recipient should re-forward.
package payload

import (
	"fmt"

	"disolv-sim/agentcore"
	"disolv-sim/agentid"
	"disolv-sim/linker"
)

// ActionKind is one of the two forwarding primitives (§4.8).
type ActionKind int

const (
	Consume ActionKind = iota
	Forward
)

func (k ActionKind) String() string {
	if k == Consume {
		return "consume"
	}
	return "forward"
}

// Action carries the consume-or-forward directive for one message unit,
// plus the target selectors evaluated in node > class > kind order.
type Action struct {
	Kind         ActionKind
	ToNode       *agentid.ID
	ToClass      *agentcore.Class
	ToKind       *agentcore.Kind
	BroadcastSet map[agentid.ID]struct{}
}

// targets reports whether this action's selectors resolve to info,
// honoring node > class > kind precedence (§4.8 "Targeting precedence").
func (a Action) targets(info RecipientInfo) bool {
	if a.ToNode != nil {
		return *a.ToNode == info.ID
	}
	if a.ToClass != nil {
		return *a.ToClass == info.Class
	}
	if a.ToKind != nil {
		return *a.ToKind == info.Kind
	}
	if a.BroadcastSet != nil {
		_, ok := a.BroadcastSet[info.ID]
		return ok
	}
	return false
}

// RecipientInfo is the minimal agent identity needed to evaluate action
// targeting and action-table lookups.
type RecipientInfo struct {
	ID    agentid.ID
	Kind  agentcore.Kind
	Class agentcore.Class
}

// MessageKind identifies the payload schema of a unit, used as the key
// into a per-target-class ActionTable.
type MessageKind string

// Unit is one typed message composed into a Payload (§3 MessageUnit).
type Unit struct {
	Kind       MessageKind
	Size       int64
	Action     Action
	Sender     RecipientInfo
	TaskData   any
}

// Clone deep-copies a unit, including its broadcast set, so that a payload
// sent to multiple targets never lets one target's action-table mutation
// leak into another's copy (design note "Payload cloning").
func (u Unit) Clone() Unit {
	clone := u
	if u.Action.BroadcastSet != nil {
		clone.Action.BroadcastSet = make(map[agentid.ID]struct{}, len(u.Action.BroadcastSet))
		for k := range u.Action.BroadcastSet {
			clone.Action.BroadcastSet[k] = struct{}{}
		}
	}
	return clone
}

// Metadata is the aggregate view over a Payload's units, recomputed
// whenever units are appended (§3 Payload invariant).
type Metadata struct {
	TotalCount  int
	TotalSize   int64
	SelectedLink *linker.Link
}

// Payload is the unit of exchange deposited into the data lake (§3).
type Payload struct {
	Sender   RecipientInfo
	Units    []Unit
	Metadata Metadata
}

// New starts an empty payload from the given sender.
func New(sender RecipientInfo) *Payload {
	return &Payload{Sender: sender}
}

// Append adds a unit and recomputes aggregate metadata.
func (p *Payload) Append(u Unit) {
	p.Units = append(p.Units, u)
	p.Metadata.TotalCount++
	p.Metadata.TotalSize += u.Size
}

// Clone deep-copies the payload, used whenever the same composed payload
// is sent to more than one target (design note "Payload cloning").
func (p *Payload) Clone() *Payload {
	clone := &Payload{
		Sender:   p.Sender,
		Units:    make([]Unit, len(p.Units)),
		Metadata: p.Metadata,
	}
	for i, u := range p.Units {
		clone.Units[i] = u.Clone()
	}
	if p.Metadata.SelectedLink != nil {
		link := *p.Metadata.SelectedLink
		clone.Metadata.SelectedLink = &link
	}
	return clone
}

// ActionTable maps a MessageKind to the Action a sender should assign it
// before transmitting to one target class (§4.8 set_actions_before_tx).
type ActionTable map[MessageKind]Action

// SetActionsBeforeTx assigns, for every unit in the payload, the action
// found in the table for its message kind. A missing entry is a fatal
// configuration error (§7 "Missing action mapping").
func SetActionsBeforeTx(p *Payload, table ActionTable) {
	for i := range p.Units {
		newAction, ok := table[p.Units[i].Kind]
		if !ok {
			panic(fmt.Sprintf("no action mapping for message kind %q", p.Units[i].Kind))
		}
		assign(&p.Units[i].Action, newAction)
	}
}

func assign(cur *Action, next Action) {
	switch next.Kind {
	case Consume:
		cur.Kind = Consume
	case Forward:
		if next.ToNode != nil {
			cur.ToNode = next.ToNode
		}
		if next.ToClass != nil {
			cur.ToClass = next.ToClass
		}
		if next.ToKind != nil {
			cur.ToKind = next.ToKind
		}
		if next.BroadcastSet != nil {
			cur.BroadcastSet = next.BroadcastSet
		}
		cur.Kind = Forward
	}
}

// CompleteActions marks units whose action is Forward but whose selectors
// now resolve to recipient as Consume (§4.8 "Consume").
func CompleteActions(p *Payload, recipient RecipientInfo) {
	for i := range p.Units {
		u := &p.Units[i]
		if u.Action.Kind != Forward {
			continue
		}
		if u.Action.targets(recipient) {
			u.Action.Kind = Consume
		}
	}
}

// FilterUnitsToForward returns clones of every received unit still marked
// Forward and addressed to targetInfo (§4.8 "Forward").
func FilterUnitsToForward(targetInfo RecipientInfo, received []*Payload) []Unit {
	var out []Unit
	for _, p := range received {
		for _, u := range p.Units {
			if u.Action.Kind != Forward {
				continue
			}
			if u.Action.targets(targetInfo) {
				out = append(out, u.Clone())
			}
		}
	}
	return out
}
