// Package agentid holds the opaque agent identifier shared by every other
// package. It is split out from agentcore so that leaf packages such as
// lake and geo can depend on it without importing the agent contract
// itself; payload and linker import agentcore as well, for Kind and Class.
package agentid

import "strconv"

// ID is an opaque, globally unique, lifetime-stable agent identifier.
type ID int64

// Invalid is the sentinel (-1) for "no agent"; the zero value 0 is an
// ordinary id.
const Invalid ID = -1

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Less orders ids for deterministic tie-breaking; used by the scheduler
// whenever two agents share an AgentOrder.
func Less(a, b ID) bool {
	return a < b
}
