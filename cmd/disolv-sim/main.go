// Command disolv-sim runs the discrete-event, time-stepped multi-agent
// simulation described by a root config document: it wires the bucket,
// scheduler, domain agents, result tables, and telemetry broadcaster
// together and drives the tick loop to completion.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"disolv-sim/agentcore"
	"disolv-sim/agentid"
	"disolv-sim/bucket"
	"disolv-sim/config"
	"disolv-sim/output"
	"disolv-sim/rng"
	"disolv-sim/scheduler"
	"disolv-sim/telemetry"
	"disolv-sim/tick"
)

var (
	configPath    *string
	telemetryAddr *string
	schedulerKind *string
)

func init() {
	configPath = flag.String("config", "./config.yaml", "path to the root config document")
	telemetryAddr = flag.String("telemetry-addr", ":8080", "address the telemetry broadcaster listens on")
	schedulerKind = flag.String("scheduler", "priority", "dispatch scheduler: priority or map")
	flag.Parse()
}

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	doc, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	seed := rng.NewSeed(doc.Simulation.Seed)

	var sink *output.Sink
	if len(doc.Output.Tables) > 0 {
		sink, err = output.New(doc.Output.OutputPath)
		if err != nil {
			return fmt.Errorf("disolv-sim: building output sink: %w", err)
		}
	}

	var resultSink bucket.ResultSink
	if sink != nil {
		resultSink = sink
	}

	b, err := buildBucket(doc, seed, resultSink)
	if err != nil {
		return err
	}

	agents, err := buildAgents(doc, seed, sink)
	if err != nil {
		return err
	}

	sched := newScheduler(*schedulerKind, b, agents, doc)

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broadcaster := telemetry.NewBroadcaster(*telemetryAddr)
	go func() {
		if err := broadcaster.Serve(appCtx); err != nil {
			log.Println("disolv-sim: telemetry:", err)
		}
	}()

	sched.Initialize()
	duration := tick.Tick(doc.Simulation.Duration)
	for now := tick.Tick(0); now < duration; now = sched.Trigger() {
		sched.Activate()
		broadcaster.Publish(telemetry.Snapshot{
			Tick:   uint64(now),
			Fields: map[string]any{"active_agents": len(agents)},
		})
	}

	sched.Terminate()
	return nil
}

func newScheduler(kind string, b *bucket.Bucket, agents map[agentid.ID]agentcore.Agent, doc *config.Document) scheduler.Scheduler {
	duration := tick.Tick(doc.Simulation.Duration)
	stepSize := tick.Tick(doc.Simulation.StepSize)
	streaming := tick.Tick(doc.Simulation.StreamingInterval)
	outputInterval := tick.Tick(doc.Output.OutputInterval)

	if kind == "map" {
		return scheduler.NewMapScheduler(b, agents, duration, stepSize, streaming, outputInterval)
	}
	return scheduler.NewPriorityScheduler(b, agents, duration, stepSize, streaming, outputInterval)
}
