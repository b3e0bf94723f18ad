package fl

import (
	"context"

	"disolv-sim/agentcore"
	"disolv-sim/agentid"
	"disolv-sim/bucket"
	"disolv-sim/payload"
	"disolv-sim/tick"
)

// ServerState is one state in the server's coordination cycle (§4.10
// "Server states").
type ServerState string

const (
	Idle            ServerState = "idle"
	ClientAnalysis  ServerState = "client_analysis"
	ClientSelection ServerState = "client_selection"
	TrainingRound   ServerState = "training_round"
	Aggregation     ServerState = "aggregation"
)

// Durations holds the per-state dwell time driving the server's
// time-gated transitions (§4.10 "time-gated by per-state durations").
type Durations struct {
	Analysis, Selection, Training, Aggregation tick.Tick
}

// SelectFunc narrows the known client roster to the set invited into one
// training round; selection policy is out of scope (§1), so Server only
// depends on this function type.
type SelectFunc func(clients []agentid.ID) []agentid.ID

// Server is the FL server state machine (§4.10). Exactly one slice name
// carries uplink client submissions and one carries server broadcasts.
type Server struct {
	agentcore.Base
	agentcore.NextActivation

	Clients       []agentid.ID
	Select        SelectFunc
	Durations     Durations
	UplinkSlice   string
	BroadcastSlice string
	Sink          Sink

	State      ServerState
	enteredAt  tick.Tick
	selected   []agentid.ID
	global     Model
	collected  []Model
}

func (s *Server) recipientInfo() payload.RecipientInfo {
	return payload.RecipientInfo{ID: s.ID(), Kind: s.Kind, Class: s.Class}
}

// NewServer seeds a server Idle at tick 0 with the given initial global
// model (§4.10).
func NewServer(id agentid.ID, order agentcore.Order, global Model) *Server {
	return &Server{
		Base:  agentcore.Base{Id: id, Ord: order},
		State: Idle,
		global: global,
	}
}

func (s *Server) durationOf(state ServerState) tick.Tick {
	switch state {
	case ClientAnalysis:
		return s.Durations.Analysis
	case ClientSelection:
		return s.Durations.Selection
	case TrainingRound:
		return s.Durations.Training
	case Aggregation:
		return s.Durations.Aggregation
	default:
		return 0
	}
}

func (s *Server) nextState(current ServerState) ServerState {
	switch current {
	case Idle:
		return ClientAnalysis
	case ClientAnalysis:
		return ClientSelection
	case ClientSelection:
		return TrainingRound
	case TrainingRound:
		return Aggregation
	default:
		return Idle
	}
}

// StageOne advances the state machine, gated purely by elapsed dwell
// time in the current state, and performs the control-message fan-out or
// aggregation work that belongs to each transition (§4.10).
func (s *Server) StageOne(bk any) {
	b := bk.(*bucket.Bucket)

	// Idle has no configured duration, so it falls straight through to
	// the transition below and is left the instant a new cycle begins.
	if s.durationOf(s.State) > 0 && b.Step.Sub(s.enteredAt) < s.durationOf(s.State) {
		if s.State == Aggregation {
			s.collectArrivals(b)
		}
		s.publishState(b)
		return
	}

	if s.State == Aggregation {
		s.collectArrivals(b)
		s.global = FedAvg(context.Background(), s.global, s.collected)
		s.recordAggregation(b)
		s.collected = nil
	}

	s.enterState(b, s.nextState(s.State))
	s.publishState(b)
}

func (s *Server) enterState(b *bucket.Bucket, next ServerState) {
	s.State = next
	s.enteredAt = b.Step

	switch next {
	case ClientAnalysis:
		s.broadcast(b, s.Clients, KindStateRequest, nil)
	case ClientSelection:
		if s.Select != nil {
			s.selected = s.Select(s.Clients)
		} else {
			s.selected = s.Clients
		}
	case TrainingRound:
		s.broadcast(b, s.selected, KindGlobalModel, s.global.Clone())
		s.broadcast(b, s.selected, KindRoundBegin, nil)
	case Idle:
		s.broadcast(b, s.selected, KindRoundComplete, nil)
	}
}

func (s *Server) broadcast(b *bucket.Bucket, targets []agentid.ID, kind payload.MessageKind, data any) {
	for _, target := range targets {
		p := payload.New(s.recipientInfo())
		p.Append(payload.Unit{Kind: kind, Sender: s.recipientInfo(), TaskData: data, Action: payload.Action{Kind: payload.Consume}})
		b.Transfer(s.BroadcastSlice, s.ID(), target, 0, p)
	}
}

// collectArrivals lifts every local-model submission deposited this tick
// (§4.10 "the server collects local models that arrive during that
// interval").
func (s *Server) collectArrivals(b *bucket.Bucket) {
	for _, p := range b.Lake().PayloadsFor(s.ID()) {
		for _, u := range p.Units {
			if u.Kind != KindLocalModel {
				continue
			}
			if model, ok := u.TaskData.(Model); ok {
				s.collected = append(s.collected, model)
			}
		}
	}
}

func (s *Server) recordAggregation(b *bucket.Bucket) {
	if s.Sink == nil {
		return
	}
	for _, client := range s.selected {
		s.Sink.AddFLModelUpdate(b.Step, client, s.ID(), string(Aggregation), "global", "upload", "ok", 0)
	}
}

func (s *Server) publishState(b *bucket.Bucket) {
	if s.Sink != nil {
		s.Sink.AddFLState(b.Step, s.ID(), string(s.State))
	}
}

func (s *Server) StageTwoReverse(any)  {}
func (s *Server) StageThree(any)       {}
func (s *Server) StageFourReverse(any) {}
func (s *Server) StageFive(any)        {}

var _ agentcore.Agent = (*Server)(nil)
