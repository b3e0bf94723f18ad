package scheduler

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"disolv-sim/agentcore"
	"disolv-sim/agentid"
	"disolv-sim/bucket"
	"disolv-sim/field"
	"disolv-sim/tick"
)

// recordingAgent is a minimal agentcore.Agent that appends its id to a
// shared log at every stage, letting tests assert dispatch order directly.
type recordingAgent struct {
	id    agentid.ID
	order agentcore.Order
	log   *[]string
	next  agentcore.NextActivation
}

func (a *recordingAgent) ID() agentid.ID          { return a.id }
func (a *recordingAgent) Order() agentcore.Order  { return a.order }
func (a *recordingAgent) Activate(any)            {}
func (a *recordingAgent) IsDeactivated(tick.Tick) bool { return false }
func (a *recordingAgent) HasNextActivation() bool { return a.next.HasNextActivation() }
func (a *recordingAgent) TimeOfActivation() tick.Tick { return a.next.TimeOfActivation() }

func (a *recordingAgent) StageOne(any)         { *a.log = append(*a.log, "1:"+a.id.String()) }
func (a *recordingAgent) StageTwoReverse(any)  { *a.log = append(*a.log, "2:"+a.id.String()) }
func (a *recordingAgent) StageThree(any)       { *a.log = append(*a.log, "3:"+a.id.String()) }
func (a *recordingAgent) StageFourReverse(any) { *a.log = append(*a.log, "4:"+a.id.String()) }
func (a *recordingAgent) StageFive(any)        { *a.log = append(*a.log, "5:"+a.id.String()) }

func newFixture() (*bucket.Bucket, map[agentid.ID]agentcore.Agent, *[]string) {
	b := bucket.New(field.New(100, 100, 10), map[agentcore.Class]agentcore.Kind{}, nil, 10, 10)
	log := &[]string{}
	agents := map[agentid.ID]agentcore.Agent{
		1: &recordingAgent{id: 1, order: 10, log: log, next: agentcore.NewNextActivation(0, true)},
		2: &recordingAgent{id: 2, order: 5, log: log, next: agentcore.NewNextActivation(0, true)},
		3: &recordingAgent{id: 3, order: 5, log: log, next: agentcore.NewNextActivation(0, true)},
	}
	return b, agents, log
}

func TestPriorityScheduler(t *testing.T) {
	Convey("Given three agents sharing two distinct orders", t, func() {
		b, agents, log := newFixture()
		s := NewPriorityScheduler(b, agents, 100, 10, 100, 100)
		s.Initialize()
		s.Activate()

		Convey("Trigger dispatches phase 1/3/5 highest-order-first and phase 2/4 lowest-order-first, breaking order ties by AgentId", func() {
			s.Trigger()

			// The active list is ascending by (order, id): 2, 3, 1. Reverse
			// phases walk it backwards (order 10 first, then id 3 before id 2);
			// forward phases walk it as is.
			So(*log, ShouldResemble, []string{
				"1:1", "1:3", "1:2",
				"2:2", "2:3", "2:1",
				"3:1", "3:3", "3:2",
				"4:2", "4:3", "4:1",
				"5:1", "5:3", "5:2",
			})
		})

		Convey("Trigger is deterministic across repeated runs with the same input", func() {
			s.Trigger()
			s2 := NewPriorityScheduler(b, map[agentid.ID]agentcore.Agent{
				1: agents[1], 2: agents[2], 3: agents[3],
			}, 100, 10, 100, 100)
			log2 := &[]string{}
			for _, a := range []agentid.ID{1, 2, 3} {
				agents[a].(*recordingAgent).log = log2
			}
			s2.Initialize()
			s2.Activate()
			s2.Trigger()
			So(*log2, ShouldResemble, *log)
		})
	})
}

func TestMapScheduler(t *testing.T) {
	Convey("Given the same three agents driven by MapScheduler", t, func() {
		b, agents, log := newFixture()
		s := NewMapScheduler(b, agents, 100, 10, 100, 100)
		s.Initialize()
		s.Activate()

		Convey("dispatch order matches PriorityScheduler's", func() {
			s.Trigger()
			So(*log, ShouldResemble, []string{
				"1:1", "1:3", "1:2",
				"2:2", "2:3", "2:1",
				"3:1", "3:3", "3:2",
				"4:2", "4:3", "4:1",
				"5:1", "5:3", "5:2",
			})
		})
	})
}

func TestSchedulerAdvancesTime(t *testing.T) {
	Convey("Given a scheduler with no agents", t, func() {
		b := bucket.New(field.New(10, 10, 5), map[agentcore.Class]agentcore.Kind{}, nil, 10, 10)
		s := NewPriorityScheduler(b, map[agentid.ID]agentcore.Agent{}, 100, 10, 100, 100)
		s.Initialize()

		Convey("Trigger still advances now by StepSize", func() {
			next := s.Trigger()
			So(next, ShouldEqual, tick.Tick(10))
			So(s.Now(), ShouldEqual, tick.Tick(10))
		})
	})
}
