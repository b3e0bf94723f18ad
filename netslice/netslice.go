// Package netslice implements the network slice / transfer feasibility
// model (C8): per-slice latency and bandwidth consumables (§4.7). The
// latency constraint decides whether a transmit succeeds; bandwidth
// consumption is counted but never refuses a transfer.
package netslice

import (
	"fmt"
	"math/rand"

	"disolv-sim/payload"
)

// Latency is a duration in the same tick units as tick.Tick, kept as its
// own type so latency arithmetic can't be confused with raw ticks.
type Latency uint64

// Status is the outcome of one transfer attempt.
type Status int

const (
	Ok Status = iota
	Infeasible
)

func (s Status) String() string {
	if s == Ok {
		return "ok"
	}
	return "infeasible"
}

// TxMetrics is returned by Transfer (§4.2 "network.transfer").
type TxMetrics struct {
	TxOrder     int
	PayloadSize int64
	Latency     Latency
	Status      Status
}

// DistParams parameterizes the Random latency variant.
type DistParams struct {
	Min, Max float64
}

// LatencyVariant is the tagged union of latency models (§4.7, design note
// "Linker / selector / latency variants. Use tagged unions enumerated at
// config load").
type LatencyVariant string

const (
	VariantConstant LatencyVariant = "constant"
	VariantDistance LatencyVariant = "distance"
	VariantOrdered  LatencyVariant = "ordered"
	VariantRandom   LatencyVariant = "random"
)

// LatencyConfig is the config-file shape for one slice's latency model
// (§6 "network.slices[].latency").
type LatencyConfig struct {
	Variant      LatencyVariant
	Constraint   Latency
	ConstantTerm Latency
	Min, Max     Latency
	Factor       float64
	DistParams   DistParams
}

// latencyModel is implemented by each concrete variant.
type latencyModel interface {
	measure(distance float64, txOrder int, rng *rand.Rand) Latency
}

type constantLatency struct{ value Latency }

func (c constantLatency) measure(float64, int, *rand.Rand) Latency { return c.value }

type distanceLatency struct {
	constantTerm Latency
	factor       float64
}

func (d distanceLatency) measure(distance float64, _ int, _ *rand.Rand) Latency {
	return Latency(float64(d.constantTerm) + d.factor*distance)
}

type orderedLatency struct {
	constantTerm Latency
	factor       float64
}

func (o orderedLatency) measure(_ float64, txOrder int, _ *rand.Rand) Latency {
	return Latency(float64(o.constantTerm) + o.factor*float64(txOrder))
}

type randomLatency struct {
	min, max Latency
}

func (r randomLatency) measure(_ float64, _ int, rng *rand.Rand) Latency {
	span := float64(r.max) - float64(r.min)
	if span <= 0 {
		return r.min
	}
	return r.min + Latency(rng.Float64()*span)
}

func newLatencyModel(cfg LatencyConfig) latencyModel {
	switch cfg.Variant {
	case VariantConstant:
		return constantLatency{value: cfg.ConstantTerm}
	case VariantDistance:
		return distanceLatency{constantTerm: cfg.ConstantTerm, factor: cfg.Factor}
	case VariantOrdered:
		return orderedLatency{constantTerm: cfg.ConstantTerm, factor: cfg.Factor}
	case VariantRandom:
		return randomLatency{min: cfg.Min, max: cfg.Max}
	default:
		// §7: "Unknown variant name (latency/selector/composer) -> Fatal."
		panic(fmt.Sprintf("unsupported latency variant %q", cfg.Variant))
	}
}

// Slice is one radio resource partition: a bandwidth consumable plus a
// latency model and constraint.
type Slice struct {
	Name      string
	ID        int
	Bandwidth int64

	consumed   int64
	constraint Latency
	model      latencyModel
	rng        *rand.Rand
	txOrder    int
}

// NewSlice builds a slice from its config-file shape and a derived RNG
// (design note "Global seed").
func NewSlice(name string, id int, bandwidth int64, cfg LatencyConfig, rng *rand.Rand) *Slice {
	return &Slice{
		Name:       name,
		ID:         id,
		Bandwidth:  bandwidth,
		constraint: cfg.Constraint,
		model:      newLatencyModel(cfg),
		rng:        rng,
	}
}

// Reset zeroes bandwidth consumption and restarts tx_order at 0 for the
// new tick (§4.7 "reset_slices"). Called from Bucket.BeforeAgents.
func (s *Slice) Reset() {
	s.consumed = 0
	s.txOrder = 0
}

// Transfer runs one transmission through the slice: computes latency,
// consumes bandwidth, and returns the resulting metrics (§4.7).
//
// distance is the selected link's distance (ignored by latency variants
// that don't use it); payload carries the byte size consumed from the
// slice's bandwidth budget regardless of feasibility — an infeasible
// transfer still occupied the channel for its duration, only delivery is
// refused.
func (s *Slice) Transfer(distance float64, p *payload.Payload) TxMetrics {
	order := s.txOrder
	s.txOrder++

	latency := s.model.measure(distance, order, s.rng)
	s.consumed += p.Metadata.TotalSize

	status := Ok
	if latency > s.constraint {
		status = Infeasible
	}

	return TxMetrics{
		TxOrder:     order,
		PayloadSize: p.Metadata.TotalSize,
		Latency:     latency,
		Status:      status,
	}
}

// ConsumedBandwidth reports bytes consumed so far this tick, exposed for
// telemetry and tests.
func (s *Slice) ConsumedBandwidth() int64 { return s.consumed }
