package payload

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"disolv-sim/agentcore"
	"disolv-sim/agentid"
)

func TestPayloadAppendAndClone(t *testing.T) {
	Convey("Given an empty payload", t, func() {
		sender := RecipientInfo{ID: 1, Kind: "vehicle"}
		p := New(sender)

		Convey("Append accumulates count and size metadata", func() {
			p.Append(Unit{Kind: "status_report", Size: 64})
			p.Append(Unit{Kind: "status_report", Size: 32})

			So(p.Metadata.TotalCount, ShouldEqual, 2)
			So(p.Metadata.TotalSize, ShouldEqual, int64(96))
		})

		Convey("Clone deep-copies units and their broadcast sets", func() {
			bset := map[agentid.ID]struct{}{2: {}, 3: {}}
			p.Append(Unit{Kind: "k", Action: Action{Kind: Forward, BroadcastSet: bset}})

			clone := p.Clone()
			clone.Units[0].Action.BroadcastSet[4] = struct{}{}

			So(p.Units[0].Action.BroadcastSet, ShouldHaveLength, 2)
			So(clone.Units[0].Action.BroadcastSet, ShouldHaveLength, 3)
		})
	})
}

func TestSetActionsBeforeTx(t *testing.T) {
	Convey("Given a payload with one unit and an action table", t, func() {
		p := New(RecipientInfo{ID: 1})
		p.Append(Unit{Kind: "status_report"})

		to := agentid.ID(9)
		table := ActionTable{
			"status_report": {Kind: Forward, ToNode: &to},
		}

		Convey("the unit's action is assigned from the table", func() {
			SetActionsBeforeTx(p, table)
			So(p.Units[0].Action.Kind, ShouldEqual, Forward)
			So(*p.Units[0].Action.ToNode, ShouldEqual, agentid.ID(9))
		})

		Convey("a missing table entry panics rather than silently dropping it", func() {
			p.Append(Unit{Kind: "unmapped"})
			So(func() { SetActionsBeforeTx(p, table) }, ShouldPanic)
		})
	})
}

func TestCompleteActionsAndFilterUnitsToForward(t *testing.T) {
	Convey("Given a unit forwarded to a specific node", t, func() {
		to := agentid.ID(5)
		p := New(RecipientInfo{ID: 1})
		p.Append(Unit{Kind: "k", Action: Action{Kind: Forward, ToNode: &to}})

		Convey("CompleteActions consumes it once it reaches that node", func() {
			CompleteActions(p, RecipientInfo{ID: 5})
			So(p.Units[0].Action.Kind, ShouldEqual, Consume)
		})

		Convey("CompleteActions leaves it Forward at any other recipient", func() {
			CompleteActions(p, RecipientInfo{ID: 6})
			So(p.Units[0].Action.Kind, ShouldEqual, Forward)
		})

		Convey("FilterUnitsToForward returns only units still addressed to the target", func() {
			other := New(RecipientInfo{ID: 2})
			other.Append(Unit{Kind: "k2", Action: Action{Kind: Consume}})

			out := FilterUnitsToForward(RecipientInfo{ID: 5}, []*Payload{p, other})
			So(out, ShouldHaveLength, 1)
			So(out[0].Kind, ShouldEqual, MessageKind("k"))
		})
	})
}

func TestActionTargetsPrecedence(t *testing.T) {
	Convey("Given an action with both a node and a class target set", t, func() {
		node := agentid.ID(1)
		class := agentcore.Class("rsu")
		a := Action{ToNode: &node, ToClass: &class}

		Convey("node precedence wins even when class would also match", func() {
			So(a.targets(RecipientInfo{ID: 1, Class: "car"}), ShouldBeTrue)
			So(a.targets(RecipientInfo{ID: 2, Class: "rsu"}), ShouldBeFalse)
		})
	})
}
