package main

import (
	"fmt"
	"math/rand"

	"disolv-sim/agentcore"
	"disolv-sim/agentid"
	"disolv-sim/bucket"
	"disolv-sim/config"
	"disolv-sim/field"
	"disolv-sim/fl"
	"disolv-sim/geo"
	"disolv-sim/input"
	"disolv-sim/linker"
	"disolv-sim/netslice"
	"disolv-sim/rng"
	"disolv-sim/selector"
	"disolv-sim/tick"
	"disolv-sim/v2x"
)

// linkKey identifies one (source kind, target kind) linker.
type linkKey struct {
	source, target agentcore.Kind
}

// buildBucket assembles the shared per-tick environment from the parsed
// config document: the spatial field, one geospatial mapper per agent
// kind with a mobility file, one linker per (source, target) kind pair
// with a link file, and every configured network slice.
func buildBucket(doc *config.Document, seed rng.Seed, sink bucket.ResultSink) (*bucket.Bucket, error) {
	classToKind := map[agentcore.Class]agentcore.Kind{}
	for _, a := range doc.Agents {
		for _, c := range a.Class {
			classToKind[agentcore.Class(c)] = agentcore.Kind(a.Kind)
		}
	}

	b := bucket.New(
		field.New(doc.Field.Width, doc.Field.Height, doc.Field.CellSize),
		classToKind,
		sink,
		tick.Tick(doc.Simulation.StreamingInterval),
		tick.Tick(doc.Output.OutputInterval),
	)

	mapperKinds := map[agentcore.Kind]bool{}
	linkerKeys := map[linkKey]string{}
	for _, a := range doc.Agents {
		kind := agentcore.Kind(a.Kind)
		if a.MobilityFile != "" && !mapperKinds[kind] {
			r, err := input.NewMobilityReader(a.MobilityFile)
			if err != nil {
				return nil, fmt.Errorf("build: mobility file for kind %s: %w", kind, err)
			}
			b.AddMapper(kind, geo.New(string(kind), r))
			mapperKinds[kind] = true
		}
		for _, l := range a.Link {
			if l.LinkFile == "" {
				continue
			}
			key := linkKey{source: kind, target: agentcore.Kind(l.TargetKind)}
			if _, ok := linkerKeys[key]; ok {
				continue
			}
			linkerKeys[key] = l.LinkFile
		}
	}

	for key, path := range linkerKeys {
		r, err := input.NewLinkReader(path)
		if err != nil {
			return nil, fmt.Errorf("build: link file for %s->%s: %w", key.source, key.target, err)
		}
		b.AddLinker(linker.New(key.source, key.target, r))
	}

	for _, s := range doc.Network.Slices {
		cfg := s.Latency.ToLatencyConfig()
		var sliceRand *rand.Rand
		if cfg.Variant == netslice.VariantRandom {
			sliceRand = seed.Derive("slice:" + s.Name)
		}
		b.AddSlice(netslice.NewSlice(s.Name, s.ID, s.Bandwidth, cfg, sliceRand))
	}

	return b, nil
}

// buildAgents constructs every configured agent's concrete type from its
// actor field and wires it against the shared power schedules loaded from
// each entry's power file (§6 "agents[].power_file").
func buildAgents(doc *config.Document, seed rng.Seed, fsink fl.Sink) (map[agentid.ID]agentcore.Agent, error) {
	agents := make(map[agentid.ID]agentcore.Agent, len(doc.Agents))

	powerByID := map[agentid.ID]*agentcore.PowerSchedule{}
	for _, a := range doc.Agents {
		if a.PowerFile == "" {
			continue
		}
		schedules, err := input.LoadPowerSchedule(a.PowerFile)
		if err != nil {
			return nil, fmt.Errorf("build: power file for agent %d: %w", a.ID, err)
		}
		for id, sched := range schedules {
			powerByID[id] = sched
		}
	}

	var clientIDs []agentid.ID
	for _, a := range doc.Agents {
		if a.Actor == "fl_client" {
			clientIDs = append(clientIDs, agentid.ID(a.ID))
		}
	}

	for _, a := range doc.Agents {
		id := agentid.ID(a.ID)
		base := agentcore.Base{Id: id, Ord: agentcore.Order(a.Order), Kind: agentcore.Kind(a.Kind)}
		if len(a.Class) > 0 {
			base.Class = agentcore.Class(a.Class[0])
		}
		base.Schedule = powerByID[id]

		switch a.Actor {
		case "v2x_device":
			agents[id] = buildDevice(a, base, seed)
		case "fl_client":
			client := &fl.Client{Base: base, Sink: fsink}
			if a.ServerID != nil {
				client.ServerID = agentid.ID(*a.ServerID)
			}
			if len(a.Link) > 0 {
				client.UplinkSlice = a.Link[0].Slice
			}
			seedFirstActivation(client, base.Schedule)
			agents[id] = client
		case "fl_server":
			server := fl.NewServer(id, agentcore.Order(a.Order), fl.Model{})
			server.Clients = clientIDs
			server.BroadcastSlice = a.BroadcastSlice
			server.Sink = fsink
			server.Durations = fl.Durations{
				Analysis:    tick.Tick(a.Durations.Analysis),
				Selection:   tick.Tick(a.Durations.Selection),
				Training:    tick.Tick(a.Durations.Training),
				Aggregation: tick.Tick(a.Durations.Aggregation),
			}
			seedFirstActivation(server, base.Schedule)
			agents[id] = server
		default:
			return nil, fmt.Errorf("build: agent %d: unrecognized actor %q", a.ID, a.Actor)
		}
	}

	return agents, nil
}

func buildDevice(a config.Agent, base agentcore.Base, seed rng.Seed) *v2x.Device {
	d := &v2x.Device{Base: base, GeoKind: base.Kind, Compose: composerFor(a.Composer)}
	for i, l := range a.Link {
		streamName := fmt.Sprintf("selector:%d:%d", a.ID, i)
		spec := v2x.TargetSpec{
			Class:     agentcore.Class(l.TargetClass),
			Kind:      agentcore.Kind(l.TargetKind),
			SliceName: l.Slice,
			Selector:  selector.New(selector.Variant(l.Selector), l.Threshold, seed.Derive(streamName)),
			Actions:   defaultActions(),
		}
		switch l.Stage {
		case "two":
			d.StageTwoTargets = append(d.StageTwoTargets, spec)
		default:
			d.StageOneTargets = append(d.StageOneTargets, spec)
		}
	}
	seedFirstActivation(d, base.Schedule)
	return d
}

func seedFirstActivation(a any, schedule *agentcore.PowerSchedule) {
	var next agentcore.NextActivation
	if schedule == nil {
		next = agentcore.NewNextActivation(0, true)
	} else if at, ok := schedule.FirstActivation(); ok {
		next = agentcore.NewNextActivation(at, true)
	} else {
		next = agentcore.NewNextActivation(0, false)
	}

	switch v := a.(type) {
	case *v2x.Device:
		v.NextActivation = next
	case *fl.Client:
		v.NextActivation = next
	case *fl.Server:
		v.NextActivation = next
	}
}
