package fl

import (
	"disolv-sim/agentid"
	"disolv-sim/payload"
	"disolv-sim/tick"
)

// Message kinds exchanged between FL clients and servers (§4.10). Each
// maps to a payload.Unit whose TaskData carries the kind-specific
// payload (nil for signal-only kinds).
const (
	KindStateRequest  payload.MessageKind = "fl_state_request"
	KindGlobalModel   payload.MessageKind = "fl_global_model"
	KindRoundBegin    payload.MessageKind = "fl_round_begin"
	KindRoundComplete payload.MessageKind = "fl_round_complete"
	KindLocalModel    payload.MessageKind = "fl_local_model"
)

// Sink is the narrow destination for FL-specific result rows, separate
// from bucket.ResultSink because FL state/model events don't fit the
// network-traffic shape every other agent reports through the bucket
// (§6 "FL state", "FL model update").
type Sink interface {
	AddFLState(t tick.Tick, id agentid.ID, state string)
	AddFLModelUpdate(t tick.Tick, id, targetID agentid.ID, agentState, modelLevel, direction, status string, accuracy float64)
}
