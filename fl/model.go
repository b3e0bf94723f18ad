// Package fl implements the federated-learning client/server state
// machines and the FedAvg aggregation rule (C12 highlights, §4.10).
package fl

import (
	"context"

	channerics "github.com/niceyeti/channerics/channels"

	"disolv-sim/fl/internal/atomicfloat"
)

// Tensor is one weight tensor, e.g. one layer's flattened weights.
type Tensor []float64

// Model is an ordered set of weight tensors (§4.10 "weight tensor W_g").
type Model []Tensor

// Clone deep-copies a model so a client's local training never mutates
// the server's retained global model.
func (m Model) Clone() Model {
	clone := make(Model, len(m))
	for i, t := range m {
		clone[i] = append(Tensor(nil), t...)
	}
	return clone
}

// sameShape reports whether two models have matching tensor counts and
// per-tensor lengths, a precondition FedAvg assumes of every client
// submission.
func sameShape(a, b Model) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
	}
	return true
}

// FedAvg computes the coordinate-wise mean of clientModels, ignoring any
// whose shape doesn't match global (treated as a dropped/missing
// client). Aggregating zero clients leaves global unchanged (§4.10
// "Aggregation rule").
//
// Clients are fanned in through channerics.Merge rather than summed
// sequentially: each client's local model arrives on its own channel
// (mirroring how the training round produces it), and accumulation into
// shared per-coordinate totals uses atomicfloat.Float64 so the one
// legitimate in-tick concurrency exception (bounded to this aggregation
// step, drained before stage five) never needs a mutex.
func FedAvg(ctx context.Context, global Model, clientModels []Model) Model {
	contributing := make([]Model, 0, len(clientModels))
	for _, m := range clientModels {
		if sameShape(m, global) {
			contributing = append(contributing, m)
		}
	}
	if len(contributing) == 0 {
		return global
	}

	totals := newAccumulator(global)

	channels := make([]<-chan Model, 0, len(contributing))
	for _, m := range contributing {
		channels = append(channels, oneShot(m))
	}
	merged := channerics.Merge(ctx.Done(), channels...)
	for m := range merged {
		totals.add(m)
	}

	return totals.mean(len(contributing))
}

// oneShot wraps a single model as a closed, buffered channel so FedAvg
// can fan every client in through the same channerics.Merge path
// regardless of how many contribute.
func oneShot(m Model) <-chan Model {
	ch := make(chan Model, 1)
	ch <- m
	close(ch)
	return ch
}

// accumulator holds one atomicfloat.Float64 per coordinate across every
// tensor in the global model, safe for concurrent add() calls from
// multiple client channels drained in parallel.
type accumulator struct {
	sums  [][]*atomicfloat.Float64
	shape Model
}

func newAccumulator(global Model) *accumulator {
	sums := make([][]*atomicfloat.Float64, len(global))
	for i, t := range global {
		row := make([]*atomicfloat.Float64, len(t))
		for j := range t {
			row[j] = atomicfloat.New(0)
		}
		sums[i] = row
	}
	return &accumulator{sums: sums, shape: global}
}

func (a *accumulator) add(m Model) {
	for i, t := range m {
		for j, v := range t {
			for {
				if _, ok := a.sums[i][j].Add(v); ok {
					break
				}
			}
		}
	}
}

func (a *accumulator) mean(n int) Model {
	out := make(Model, len(a.sums))
	for i, row := range a.sums {
		out[i] = make(Tensor, len(row))
		for j, cell := range row {
			out[i][j] = cell.Read() / float64(n)
		}
	}
	return out
}
