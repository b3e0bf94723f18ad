package fl

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"disolv-sim/agentcore"
	"disolv-sim/bucket"
	"disolv-sim/field"
	"disolv-sim/netslice"
	"disolv-sim/payload"
)

func mustSlice() *netslice.Slice {
	return netslice.NewSlice("fl_uplink", 0, 1_000_000, netslice.LatencyConfig{
		Variant:    netslice.VariantConstant,
		Constraint: 1000,
	}, nil)
}

func newFLBucket() *bucket.Bucket {
	b := bucket.New(field.New(10, 10, 5), map[agentcore.Class]agentcore.Kind{}, nil, 1000, 1000)
	b.Initialize(0)
	b.BeforeAgents(0)
	return b
}

func TestClientStateMachine(t *testing.T) {
	Convey("Given a client in Sensing", t, func() {
		b := newFLBucket()
		client := &Client{Base: agentcore.Base{Id: 1, Ord: 1}, State: Sensing, ServerID: 2}

		deliver := func(kind payload.MessageKind, data any) {
			p := payload.New(payload.RecipientInfo{ID: 2})
			p.Append(payload.Unit{Kind: kind, TaskData: data})
			b.Lake().AddPayloadTo(1, p)
		}

		Convey("a StateRequest moves it to Informing", func() {
			deliver(KindStateRequest, nil)
			client.StageOne(b)
			So(client.State, ShouldEqual, Informing)
		})

		Convey("an out-of-state GlobalModel is ignored", func() {
			deliver(KindGlobalModel, Model{{1}})
			client.StageOne(b)
			So(client.State, ShouldEqual, Sensing)
		})

		Convey("missing the follow-up transition past the deadline reverts to Sensing", func() {
			deliver(KindStateRequest, nil)
			client.StageOne(b)
			So(client.State, ShouldEqual, Informing)

			b.BeforeAgents(client.DraftChangeAt)
			client.StageOne(b)
			So(client.State, ShouldEqual, Sensing)
		})

		Convey("a full Informing->ReadyToTrain->Training cycle trains and uploads", func() {
			deliver(KindStateRequest, nil)
			client.StageOne(b)

			b.BeforeAgents(1)
			deliver(KindGlobalModel, Model{{1, 1}})
			client.StageOne(b)
			So(client.State, ShouldEqual, ReadyToTrain)

			client.Train = func(global Model) Model {
				return Model{{global[0][0] + 1, global[0][1] + 1}}
			}

			b.BeforeAgents(2)
			deliver(KindRoundBegin, nil)
			client.StageOne(b)
			So(client.State, ShouldEqual, Training)

			client.UplinkSlice = "fl_uplink"
			b.AddSlice(mustSlice())
			client.StageTwoReverse(b)

			delivered := b.Lake().PayloadsFor(2)
			So(delivered, ShouldHaveLength, 1)
			model, ok := delivered[0].Units[0].TaskData.(Model)
			So(ok, ShouldBeTrue)
			So(model, ShouldResemble, Model{{2, 2}})
		})
	})
}
