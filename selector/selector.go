// Package selector implements the link selector (C6): reduces candidate
// links to the target set a sender actually transmits to (§4.5).
package selector

import (
	"math/rand"
	"sort"

	"disolv-sim/linker"
)

// Variant is the tagged union of selection policies (design note "tagged
// unions enumerated at config load").
type Variant string

const (
	All     Variant = "all"
	Nearest Variant = "nearest"
	Random  Variant = "random"
	Stats   Variant = "stats"
)

// Stats is the subset of a candidate's comm stats the Stats-weighted
// variant reasons about, keyed by the candidate's position in the
// candidate slice passed to Select.
type Stats struct {
	SuccessRate float64
}

// Selector reduces a candidate link list to the subset to transmit to.
// Selection must be deterministic given its seed (§4.5), so Selector
// holds its own derived *rand.Rand rather than touching a process-global
// source.
type Selector struct {
	variant   Variant
	threshold float64
	rng       *rand.Rand
}

// New builds a Selector. threshold is only meaningful for the Stats
// variant (§4.5 "prefer targets whose success_rate exceeds a configured
// threshold").
func New(variant Variant, threshold float64, rng *rand.Rand) *Selector {
	return &Selector{variant: variant, threshold: threshold, rng: rng}
}

// Select returns the subset of candidates to transmit to. stats[i]
// corresponds to candidates[i]; a nil stats slice is fine for every
// variant except Stats. An empty candidate set always returns an empty
// target set (§4.5 "no transmission").
func (s *Selector) Select(candidates []linker.Link, stats []Stats) []linker.Link {
	if len(candidates) == 0 {
		return nil
	}
	switch s.variant {
	case All:
		return candidates
	case Nearest:
		return []linker.Link{nearest(candidates)}
	case Random:
		return []linker.Link{candidates[s.rng.Intn(len(candidates))]}
	case Stats:
		return statsWeighted(candidates, stats, s.threshold)
	default:
		// Unknown variant names are resolved once at config load (see
		// config.Load); reaching here means a caller built a Selector by
		// hand with a bad variant, which is a programming error, not a
		// runtime/config one, so panic is appropriate.
		panic("selector: unknown variant " + string(s.variant))
	}
}

func nearest(candidates []linker.Link) linker.Link {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Distance < best.Distance {
			best = c
		}
	}
	return best
}

// statsWeighted prefers candidates whose success rate exceeds threshold,
// tie-broken by distance; if none clear the threshold, falls back to the
// single nearest candidate so a sender is never stranded by a cold-start
// stats table.
func statsWeighted(candidates []linker.Link, stats []Stats, threshold float64) []linker.Link {
	type scored struct {
		link linker.Link
		rate float64
	}
	var qualifying []scored
	for i, c := range candidates {
		rate := 0.0
		if i < len(stats) {
			rate = stats[i].SuccessRate
		}
		if rate > threshold {
			qualifying = append(qualifying, scored{link: c, rate: rate})
		}
	}
	if len(qualifying) == 0 {
		return []linker.Link{nearest(candidates)}
	}
	sort.Slice(qualifying, func(i, j int) bool {
		if qualifying[i].rate != qualifying[j].rate {
			return qualifying[i].rate > qualifying[j].rate
		}
		return qualifying[i].link.Distance < qualifying[j].link.Distance
	})
	out := make([]linker.Link, len(qualifying))
	for i, q := range qualifying {
		out[i] = q.link
	}
	return out
}
