package v2x

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"disolv-sim/agentcore"
	"disolv-sim/agentid"
	"disolv-sim/bucket"
	"disolv-sim/field"
	"disolv-sim/linker"
	"disolv-sim/netslice"
	"disolv-sim/payload"
	"disolv-sim/selector"
	"disolv-sim/tick"
)

// onceLinkReader yields one row-group then nothing, enough to populate a
// linker's current-tick snapshot for a test.
type onceLinkReader struct {
	rows []linker.Row
	done bool
}

func (r *onceLinkReader) Next() ([]linker.Row, bool) {
	if r.done {
		return nil, false
	}
	r.done = true
	return r.rows, true
}

const rsuClass agentcore.Class = "rsu"
const vehicleKind agentcore.Kind = "vehicle"
const rsuKind agentcore.Kind = "rsu"

func newTestBucket(l *linker.Linker) *bucket.Bucket {
	b := bucket.New(field.New(1000, 1000, 100), map[agentcore.Class]agentcore.Kind{rsuClass: rsuKind}, nil, 1000, 1000)
	b.AddLinker(l)
	b.AddSlice(netslice.NewSlice("uplink", 0, 1_000_000, netslice.LatencyConfig{
		Variant:      netslice.VariantConstant,
		Constraint:   1000,
		ConstantTerm: 10,
	}, nil))
	b.Initialize(0)
	b.BeforeAgents(0)
	return b
}

func TestDeviceStageOneTransmit(t *testing.T) {
	Convey("Given a device with one reachable RSU target", t, func() {
		l := linker.New(vehicleKind, rsuKind, &onceLinkReader{rows: []linker.Row{
			{TimeStep: 0, AgentID: 1, TargetID: 2, Distance: 50},
		}})
		b := newTestBucket(l)

		actions := payload.ActionTable{
			"status": {Kind: payload.Consume},
		}
		d := &Device{
			Base:    agentcore.Base{Id: 1, Ord: 1, Kind: vehicleKind},
			GeoKind: vehicleKind,
			StageOneTargets: []TargetSpec{
				{Class: rsuClass, Kind: rsuKind, SliceName: "uplink", Selector: selector.New(selector.All, 0, nil), Actions: actions},
			},
			Compose: func(d *Device, targetClass agentcore.Class) []payload.Unit {
				return []payload.Unit{{Kind: "status", Size: 128, Sender: d.recipientInfo()}}
			},
		}

		Convey("StageOne deposits a payload into the RSU's lake inbox", func() {
			d.StageOne(b)
			So(b.Lake().IsEmptyFor(2), ShouldBeFalse)

			delivered := b.Lake().PayloadsFor(2)
			So(delivered, ShouldHaveLength, 1)
			So(delivered[0].Units, ShouldHaveLength, 1)
			So(delivered[0].Units[0].Action.Kind, ShouldEqual, payload.Consume)
		})

		Convey("stats register the outgoing attempt and feasible transfer", func() {
			d.StageOne(b)
			stats := b.StatsFor(1)
			So(stats.Outgoing.Attempted.AgentCount, ShouldEqual, 1)
			So(stats.Outgoing.Feasible.AgentCount, ShouldEqual, 1)
		})
	})
}

func TestDeviceForwarding(t *testing.T) {
	Convey("Given a unit addressed to class rsu still marked Forward", t, func() {
		l := linker.New(vehicleKind, rsuKind, &onceLinkReader{rows: []linker.Row{
			{TimeStep: 0, AgentID: 5, TargetID: 2, Distance: 10},
		}})
		b := newTestBucket(l)

		rsuID := agentid.ID(2)
		target := rsuClass
		forwardAction := payload.Action{Kind: payload.Forward, ToClass: &target}
		inbound := payload.New(payload.RecipientInfo{ID: 99, Kind: vehicleKind})
		inbound.Append(payload.Unit{Kind: "status", Size: 64, Action: forwardAction})
		b.Lake().AddPayloadTo(5, inbound)

		actions := payload.ActionTable{"status": {Kind: payload.Forward, ToClass: &target}}
		intermediary := &Device{
			Base:    agentcore.Base{Id: 5, Ord: 1, Kind: vehicleKind, Class: "intermediary"},
			GeoKind: vehicleKind,
			StageOneTargets: []TargetSpec{
				{Class: rsuClass, Kind: rsuKind, SliceName: "uplink", Selector: selector.New(selector.All, 0, nil), Actions: actions},
			},
		}

		Convey("the intermediary appends the still-forwardable unit toward the RSU", func() {
			intermediary.StageOne(b)

			delivered := b.Lake().PayloadsFor(rsuID)
			So(delivered, ShouldHaveLength, 1)
			So(delivered[0].Units, ShouldHaveLength, 1)
			So(delivered[0].Units[0].Action.Kind, ShouldEqual, payload.Forward)
		})
	})
}

func TestDevicePowerSchedule(t *testing.T) {
	Convey("Given a device whose power window closes at tick 300", t, func() {
		l := linker.New(vehicleKind, rsuKind, &onceLinkReader{})
		b := newTestBucket(l)
		b.Step = 300

		sched := agentcore.NewPowerSchedule([]tick.Tick{100}, []tick.Tick{300})
		d := &Device{Base: agentcore.Base{Id: 1, Ord: 1, Kind: vehicleKind, Schedule: sched}}
		d.Base.Activate(b)

		Convey("IsDeactivated is true at tick 300, and StageFourReverse records no further activation", func() {
			So(d.Base.IsDeactivated(300), ShouldBeTrue)
			d.StageFourReverse(b)
			So(d.HasNextActivation(), ShouldBeFalse)
		})
	})
}
