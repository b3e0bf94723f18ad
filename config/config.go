// Package config loads the simulation's root document (§6 External
// interfaces). It follows the teacher's viper-then-yaml.v3 double-parse
// idiom: viper handles file discovery and the outer envelope, then the
// untyped inner document is re-marshaled through yaml.v3 into the
// concrete, tagged-union-aware structs below. Unknown variant names are
// resolved here, once, at load time (§7 "Unknown variant name -> Fatal").
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"disolv-sim/netslice"
	"disolv-sim/selector"
)

// ErrUnknownVariant is wrapped into the returned error whenever a
// latency/selector/composer variant name doesn't match a known one.
type ErrUnknownVariant struct {
	Field, Value string
}

func (e *ErrUnknownVariant) Error() string {
	return fmt.Sprintf("config: unknown %s variant %q", e.Field, e.Value)
}

// KnownComposers is the set of agents[].composer names this build
// recognizes (§6). composerFor in cmd/disolv-sim resolves the same names
// with its own switch; an unrecognized composer name fails here, at
// config load, instead of silently falling back to a default composer
// (§7 "Unknown variant name -> Fatal").
var KnownComposers = map[string]bool{
	"status_report": true,
}

// Simulation is the `simulation` root section (§6).
type Simulation struct {
	Duration          uint64 `yaml:"duration"`
	StepSize          uint64 `yaml:"step_size"`
	StreamingInterval uint64 `yaml:"streaming_interval"`
	Seed              int64  `yaml:"seed"`
	Scenario          string `yaml:"scenario"`
}

// Output is the `output` root section (§6).
type Output struct {
	OutputPath     string   `yaml:"output_path"`
	OutputInterval uint64   `yaml:"output_interval"`
	Tables         []string `yaml:"tables"`
}

// Field is the `field` root section (§6).
type Field struct {
	Width    float64 `yaml:"width"`
	Height   float64 `yaml:"height"`
	CellSize float64 `yaml:"cell_size"`
}

// Link describes one target class this agent reaches, plus how it
// selects and transmits to it (§6 "agents[].link[]").
type Link struct {
	TargetClass string  `yaml:"target_class"`
	TargetKind  string  `yaml:"target_kind"`
	LinkFile    string  `yaml:"link_file"`
	Slice       string  `yaml:"slice"`
	Selector    string  `yaml:"selector"`
	Threshold   float64 `yaml:"threshold"`
	Stage       string  `yaml:"stage"` // "one" or "two"
}

// Agent is one `agents[]` entry (§6). Actor selects which concrete agent
// type the entry builds ("v2x_device", "fl_client", "fl_server"); the
// fields below it are only meaningful for the matching actor.
type Agent struct {
	ID           uint64   `yaml:"id"`
	Order        uint32   `yaml:"order"`
	Kind         string   `yaml:"kind"`
	Class        []string `yaml:"class"`
	MobilityFile string   `yaml:"mobility_file"`
	PowerFile    string   `yaml:"power_file"`
	Link         []Link   `yaml:"link"`
	Composer     string   `yaml:"composer"`
	Actor        string   `yaml:"actor"`

	// fl_client / fl_server only.
	ServerID       *uint64        `yaml:"server_id"`
	BroadcastSlice string         `yaml:"broadcast_slice"`
	Durations      AgentDurations `yaml:"durations"`
}

// AgentDurations is an fl_server entry's per-state dwell times (§4.10).
type AgentDurations struct {
	Analysis    uint64 `yaml:"analysis"`
	Selection   uint64 `yaml:"selection"`
	Training    uint64 `yaml:"training"`
	Aggregation uint64 `yaml:"aggregation"`
}

// Latency is the `network.slices[].latency` section (§6), carrying every
// field any variant might need; unused fields for a given variant are
// simply zero.
type Latency struct {
	Variant      string  `yaml:"variant"`
	Constraint   uint64  `yaml:"constraint"`
	ConstantTerm uint64  `yaml:"constant_term"`
	Min          uint64  `yaml:"min"`
	Max          uint64  `yaml:"max"`
	Factor       float64 `yaml:"factor"`
	DistParams   struct {
		Min float64 `yaml:"min"`
		Max float64 `yaml:"max"`
	} `yaml:"dist_params"`
}

// Slice is one `network.slices[]` entry (§6).
type Slice struct {
	Name      string  `yaml:"name"`
	ID        int     `yaml:"id"`
	Bandwidth int64   `yaml:"bandwidth"`
	Latency   Latency `yaml:"latency"`
}

// Network is the `network` root section (§6).
type Network struct {
	Slices []Slice `yaml:"slices"`
}

// Document is the fully-typed root document (§6).
type Document struct {
	Simulation Simulation `yaml:"simulation"`
	Output     Output     `yaml:"output"`
	Field      Field      `yaml:"field"`
	Agents     []Agent    `yaml:"agents"`
	Network    Network    `yaml:"network"`
}

// envelope mirrors viper's native map-of-interface{} decode target; the
// document is re-marshaled into yaml bytes and re-parsed into Document so
// every nested field gets yaml.v3's tag-aware decoding instead of
// viper/mapstructure's looser one (design note, same shape as the
// teacher's reinforcement.FromYaml).
type envelope struct {
	Def map[string]interface{} `mapstructure:",remain"`
}

// Load reads and parses the root document at path.
func Load(path string) (*Document, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var outer envelope
	if err := vp.Unmarshal(&outer); err != nil {
		return nil, fmt.Errorf("config: decoding outer envelope: %w", err)
	}

	raw, err := yaml.Marshal(outer.Def)
	if err != nil {
		return nil, fmt.Errorf("config: re-marshaling envelope: %w", err)
	}

	doc := &Document{}
	if err := yaml.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("config: decoding document: %w", err)
	}

	if err := validateVariants(doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// validateVariants resolves every tagged-union field to a known Go value
// up front, so an unknown variant name fails before the first tick
// instead of panicking mid-run (§7).
func validateVariants(doc *Document) error {
	for _, s := range doc.Network.Slices {
		switch netslice.LatencyVariant(s.Latency.Variant) {
		case netslice.VariantConstant, netslice.VariantDistance, netslice.VariantOrdered, netslice.VariantRandom:
		default:
			return &ErrUnknownVariant{Field: "network.slices[].latency.variant", Value: s.Latency.Variant}
		}
	}
	for _, a := range doc.Agents {
		if a.Composer != "" && !KnownComposers[a.Composer] {
			return &ErrUnknownVariant{Field: "agents[].composer", Value: a.Composer}
		}
		for _, l := range a.Link {
			if l.Selector == "" {
				continue
			}
			switch selector.Variant(l.Selector) {
			case selector.All, selector.Nearest, selector.Random, selector.Stats:
			default:
				return &ErrUnknownVariant{Field: "agents[].link[].selector", Value: l.Selector}
			}
		}
	}
	return nil
}

// ToLatencyConfig converts the config-file latency shape into the
// tagged-union value netslice.NewSlice expects.
func (l Latency) ToLatencyConfig() netslice.LatencyConfig {
	return netslice.LatencyConfig{
		Variant:      netslice.LatencyVariant(l.Variant),
		Constraint:   netslice.Latency(l.Constraint),
		ConstantTerm: netslice.Latency(l.ConstantTerm),
		Min:          netslice.Latency(l.Min),
		Max:          netslice.Latency(l.Max),
		Factor:       l.Factor,
		DistParams:   netslice.DistParams{Min: l.DistParams.Min, Max: l.DistParams.Max},
	}
}
