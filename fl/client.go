package fl

import (
	"disolv-sim/agentcore"
	"disolv-sim/agentid"
	"disolv-sim/bucket"
	"disolv-sim/payload"
	"disolv-sim/tick"
)

// ClientState is one state in the client's training cycle (§4.10
// "Client states").
type ClientState string

const (
	Sensing      ClientState = "sensing"
	Informing    ClientState = "informing"
	ReadyToTrain ClientState = "ready_to_train"
	Training     ClientState = "training"
)

// TrainFunc produces a locally-updated model from the current global
// model; the concrete training loop is out of scope (§1), so Client only
// depends on this function type.
type TrainFunc func(global Model) Model

// Client is the FL client state machine (§4.10). It embeds agentcore.Base
// for scheduler bookkeeping and drives its own state purely from FL task
// units arriving in its lake inbox.
type Client struct {
	agentcore.Base
	agentcore.NextActivation

	ServerID    agentid.ID
	UplinkSlice string
	Train       TrainFunc
	Sink        Sink

	State         ClientState
	DraftChangeAt tick.Tick
	HasDraft      bool

	global Model
	local  Model
}

func (c *Client) recipientInfo() payload.RecipientInfo {
	return payload.RecipientInfo{ID: c.ID(), Kind: c.Kind, Class: c.Class}
}

// transition moves to next, arming a deadline by which the following
// expected transition must occur (§4.10 "gated by a draft_change_at
// deadline").
func (c *Client) transition(next ClientState, deadline tick.Tick) {
	c.State = next
	c.DraftChangeAt = deadline
	c.HasDraft = true
}

// revertIfExpired reverts to Sensing when the current step has passed
// DraftChangeAt without the expected follow-up transition having
// happened (§4.10 "missing a transition reverts to Sensing").
func (c *Client) revertIfExpired(step tick.Tick) {
	if c.State == Sensing || !c.HasDraft {
		return
	}
	if step.Before(c.DraftChangeAt) {
		return
	}
	c.State = Sensing
	c.HasDraft = false
}

// StageOne processes inbound FL tasks and reacts to timed-out
// transitions; transmit of local models happens from StageTwoReverse,
// once Training has produced one (§4.9 shape reused for C12).
func (c *Client) StageOne(bk any) {
	b := bk.(*bucket.Bucket)
	c.revertIfExpired(b.Step)

	for _, p := range b.Lake().PayloadsFor(c.ID()) {
		for _, u := range p.Units {
			c.handle(b, u)
		}
	}

	if c.Sink != nil {
		c.Sink.AddFLState(b.Step, c.ID(), string(c.State))
	}
}

// handle applies one received FL task unit to the state machine (§4.10).
// A task that doesn't match the client's current state is ignored (§7
// "FL client receives out-of-state task -> Ignore").
func (c *Client) handle(b *bucket.Bucket, u payload.Unit) {
	switch u.Kind {
	case KindStateRequest:
		if c.State != Sensing {
			return
		}
		c.transition(Informing, b.Step.Add(10))
	case KindGlobalModel:
		if c.State != Informing {
			return
		}
		if model, ok := u.TaskData.(Model); ok {
			c.global = model.Clone()
		}
		c.transition(ReadyToTrain, b.Step.Add(10))
	case KindRoundBegin:
		if c.State != ReadyToTrain {
			return
		}
		c.transition(Training, b.Step.Add(100))
		if c.Train != nil {
			c.local = c.Train(c.global)
		}
	case KindRoundComplete:
		if c.State != Training {
			return
		}
		c.State = Sensing
		c.HasDraft = false
	}
}

// StageTwoReverse uploads the locally-trained model to the server once
// training has produced one for this round.
func (c *Client) StageTwoReverse(bk any) {
	b := bk.(*bucket.Bucket)
	if c.State != Training || c.local == nil {
		return
	}
	p := payload.New(c.recipientInfo())
	p.Append(payload.Unit{
		Kind:     KindLocalModel,
		Sender:   c.recipientInfo(),
		TaskData: c.local,
		Action:   payload.Action{Kind: payload.Consume},
	})
	b.Transfer(c.UplinkSlice, c.ID(), c.ServerID, 0, p)
	c.local = nil
}

func (c *Client) StageThree(any)       {}
func (c *Client) StageFourReverse(any) {}
func (c *Client) StageFive(any)        {}

var _ agentcore.Agent = (*Client)(nil)
