package main

import (
	"fmt"

	"disolv-sim/agentcore"
	"disolv-sim/payload"
	"disolv-sim/v2x"
)

// statusReport is the "status_report" composer (§6 agents[].composer):
// one device reports its own position to every downstream target. Real
// deployments would register further composer kinds here by name; only
// this one ships built in.
const statusReportKind payload.MessageKind = "status_report"

func statusReport(d *v2x.Device, _ agentcore.Class) []payload.Unit {
	return []payload.Unit{{
		Kind:     statusReportKind,
		Size:     64,
		TaskData: d.Position,
	}}
}

// composerFor resolves a composer name to its ComposeFunc. config.Load
// already rejects any agents[].composer name outside
// config.KnownComposers before the first tick (§7 "Unknown variant name
// -> Fatal"), so reaching the default case here means buildDevice was
// called against an unvalidated document, a programming error rather
// than a config one.
func composerFor(name string) v2x.ComposeFunc {
	switch name {
	case "status_report", "":
		return statusReport
	default:
		panic(fmt.Sprintf("compose: unresolved composer %q (config.Load should have rejected this)", name))
	}
}

// defaultActions is the action table assigned before every device
// transmit: every unit type this build knows how to compose is consumed
// by its immediate recipient rather than forwarded further (§4.8
// set_actions_before_tx). A deployment wiring a relay/forward topology
// (scenario S4) would give devices a richer table keyed by message kind.
func defaultActions() payload.ActionTable {
	return payload.ActionTable{
		statusReportKind: {Kind: payload.Consume},
	}
}
