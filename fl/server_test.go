package fl

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"disolv-sim/agentid"
	"disolv-sim/payload"
	"disolv-sim/tick"
)

func TestServerStateMachine(t *testing.T) {
	Convey("Given a server with zero-duration analysis/selection and one client", t, func() {
		b := newFLBucket()
		b.AddSlice(mustSlice())

		server := NewServer(10, 1, Model{{0, 0}})
		server.Clients = []agentid.ID{1}
		server.BroadcastSlice = "fl_uplink"
		server.Durations = Durations{Training: 5, Aggregation: 5}

		Convey("Idle advances straight through ClientAnalysis and ClientSelection to TrainingRound", func() {
			server.StageOne(b) // Idle -> ClientAnalysis
			So(server.State, ShouldEqual, ClientAnalysis)

			server.StageOne(b) // ClientAnalysis -> ClientSelection (zero duration)
			So(server.State, ShouldEqual, ClientSelection)

			server.StageOne(b) // ClientSelection -> TrainingRound
			So(server.State, ShouldEqual, TrainingRound)
			So(server.selected, ShouldResemble, []agentid.ID{1})
		})

		Convey("entering TrainingRound broadcasts GlobalModel and RoundBegin to the selected client", func() {
			server.StageOne(b)
			b.Lake().PayloadsFor(1) // drain the StateRequest sent on entering ClientAnalysis
			server.StageOne(b)
			server.StageOne(b)

			delivered := b.Lake().PayloadsFor(1)
			So(delivered, ShouldHaveLength, 2)
			So(delivered[0].Units[0].Kind, ShouldEqual, KindGlobalModel)
			So(delivered[1].Units[0].Kind, ShouldEqual, KindRoundBegin)
		})

		Convey("Aggregation averages collected client models into the global model", func() {
			server.StageOne(b) // -> ClientAnalysis
			server.StageOne(b) // -> ClientSelection
			server.StageOne(b) // -> TrainingRound, enteredAt=0
			b.Lake().PayloadsFor(1) // drain the broadcast

			// Hold in TrainingRound (duration 5) through step 4, cross into
			// Aggregation at step 5.
			for step := tick.Tick(1); step <= 5; step++ {
				b.Step = step
				server.StageOne(b)
			}
			So(server.State, ShouldEqual, Aggregation)

			// Deposit one client submission during the aggregation window.
			p := payload.New(payload.RecipientInfo{ID: 1})
			p.Append(payload.Unit{Kind: KindLocalModel, TaskData: Model{{4, 4}}})
			b.Lake().AddPayloadTo(10, p)

			// Hold through the aggregation window, then cross out of it.
			for step := tick.Tick(6); step <= 10; step++ {
				b.Step = step
				server.StageOne(b)
			}

			So(server.State, ShouldEqual, Idle)
			So(server.global, ShouldResemble, Model{{4, 4}})
		})
	})
}
