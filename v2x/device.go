// Package v2x implements the V2X device agent (part of C12): the concrete
// five-phase behavior that drives uplink, downlink, and sidelink exchange
// over the bucket's link catalog and network slices.
package v2x

import (
	"disolv-sim/agentcore"
	"disolv-sim/bucket"
	"disolv-sim/geo"
	"disolv-sim/payload"
	"disolv-sim/selector"
)

// ComposeFunc builds the units a device originates toward one target
// class, e.g. a status report or a sensor reading (§4.9 "compose
// payload").
type ComposeFunc func(d *Device, targetClass agentcore.Class) []payload.Unit

// TargetSpec is everything a device needs to reach one downstream class:
// which slice carries the traffic, how links are pruned to a transmit
// set, and the action table its composed units should carry.
type TargetSpec struct {
	Class      agentcore.Class
	Kind       agentcore.Kind
	SliceName  string
	Selector   *selector.Selector
	Actions    payload.ActionTable
}

// Device is a V2X network participant: a vehicle, roadside unit, or base
// station. It embeds agentcore.Base for id/order/power-schedule
// bookkeeping and holds the routing configuration the bucket's link
// catalog and network slices are driven through (§4.9 C10/C12).
type Device struct {
	agentcore.Base
	agentcore.NextActivation

	GeoKind agentcore.Kind

	StageOneTargets []TargetSpec
	StageTwoTargets []TargetSpec

	Compose ComposeFunc

	Position geo.MapState
}

func (d *Device) recipientInfo() payload.RecipientInfo {
	return payload.RecipientInfo{ID: d.ID(), Kind: d.Kind, Class: d.Class}
}

// StageOne pulls the current tick's position, registers self stats,
// receives payloads deposited earlier in this tick (the lake is cleaned
// in BeforeAgents), and
// transmits toward every stage-one target class (§4.9 "stage_one").
func (d *Device) StageOne(bk any) {
	b := bk.(*bucket.Bucket)

	if pos, ok := b.PositionsFor(d.ID(), d.GeoKind); ok {
		d.Position = pos
		b.PlaceInField(d.ID(), pos)
		b.RecordPosition(d.ID(), pos)
	}

	stats := b.StatsFor(d.ID())
	stats.Reset()

	received := b.Lake().PayloadsFor(d.ID())
	stats.RegisterIncoming(received)

	recipient := d.recipientInfo()
	for _, p := range received {
		payload.CompleteActions(p, recipient)
	}

	d.transmitToTargets(b, d.StageOneTargets, received)

	b.UpdateAgentDataOf(d.ID(), bucket.AgentInfo{RecipientInfo: recipient, MapState: d.Position})
}

// StageTwoReverse is the downlink counterpart of stage_one: same receive,
// complete-actions, and transmit shape, run against the stage-two class
// set (§4.9 "stage_two_reverse").
func (d *Device) StageTwoReverse(bk any) {
	b := bk.(*bucket.Bucket)

	received := b.Lake().PayloadsFor(d.ID())
	stats := b.StatsFor(d.ID())
	stats.RegisterIncoming(received)

	recipient := d.recipientInfo()
	for _, p := range received {
		payload.CompleteActions(p, recipient)
	}

	d.transmitToTargets(b, d.StageTwoTargets, received)
}

// StageThree is sidelink receive only: no device-to-device relay happens
// within the same tick's sidelink phase (§4.9 "stage_three").
func (d *Device) StageThree(bk any) {
	b := bk.(*bucket.Bucket)
	received := b.Lake().SidelinkPayloadsFor(d.ID())
	stats := b.StatsFor(d.ID())
	stats.RegisterIncoming(received)

	recipient := d.recipientInfo()
	for _, p := range received {
		payload.CompleteActions(p, recipient)
	}
}

// StageFourReverse tallies nothing further (stats were accumulated as
// payloads arrived) and checks the power schedule for an off transition
// (§4.9 "stage_four_reverse").
func (d *Device) StageFourReverse(bk any) {
	b := bk.(*bucket.Bucket)
	if d.Base.IsDeactivated(b.Step) {
		next, ok := d.Base.Deactivate()
		d.NextActivation = agentcore.NewNextActivation(next, ok)
	}
}

// StageFive publishes the tick's accumulated stats to the bucket (§4.9
// "stage_five").
func (d *Device) StageFive(bk any) {
	b := bk.(*bucket.Bucket)
	stats := b.StatsFor(d.ID())
	b.UpdateStatsOf(d.ID(), *stats)
	b.RecordRxCounts(d.ID(), *stats)
}

// transmitToTargets composes and sends one payload per selected link for
// every target spec, folding in any received units still marked Forward
// toward that link's recipient (§4.9, §4.8, scenario S4).
func (d *Device) transmitToTargets(b *bucket.Bucket, targets []TargetSpec, received []*payload.Payload) {
	for _, spec := range targets {
		candidates, ok := b.LinkOptionsFor(d.ID(), d.Kind, spec.Class)
		if !ok || len(candidates) == 0 {
			continue
		}
		candidateStats := make([]selector.Stats, len(candidates))
		for i, c := range candidates {
			candidateStats[i] = selector.Stats{SuccessRate: b.StatsFor(c.Target).SuccessRate()}
		}
		selected := spec.Selector.Select(candidates, candidateStats)
		for _, link := range selected {
			p := payload.New(d.recipientInfo())
			if d.Compose != nil {
				for _, u := range d.Compose(d, spec.Class) {
					p.Append(u)
				}
			}

			recipientInfo := payload.RecipientInfo{ID: link.Target, Kind: spec.Kind, Class: spec.Class}
			for _, u := range payload.FilterUnitsToForward(recipientInfo, received) {
				p.Append(u)
			}

			if len(p.Units) == 0 {
				continue
			}

			payload.SetActionsBeforeTx(p, spec.Actions)
			metrics := b.Transfer(spec.SliceName, d.ID(), link.Target, link.Distance, p)
			b.RecordTx(d.ID(), metrics, link.Target, link.Distance, int64(p.Metadata.TotalCount), true, "")
		}
	}
}

var _ agentcore.Agent = (*Device)(nil)
