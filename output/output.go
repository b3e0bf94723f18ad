// Package output implements the streamed result tables (§6 "Streamed
// output files"): Positions, Rx counts, Tx data, FL state, and FL model
// update, each buffered in memory and flushed to its own CSV file at
// output_interval. No pack example carries a structured dataframe/parquet
// writer, so this leans on encoding/csv directly, the same way the
// streamed *input* readers (geo/linker) lean on a narrow Reader interface
// over whatever format the caller wires in — see DESIGN.md.
package output

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"disolv-sim/agentid"
	"disolv-sim/flow"
	"disolv-sim/geo"
	"disolv-sim/netslice"
	"disolv-sim/tick"
)

// table buffers one CSV table's rows in memory between flushes.
type table struct {
	path    string
	header  []string
	rows    [][]string
	file    *os.File
	writer  *csv.Writer
	started bool
}

func newTable(dir, name string, header []string) *table {
	return &table{path: filepath.Join(dir, name+".csv"), header: header}
}

func (t *table) append(row []string) {
	t.rows = append(t.rows, row)
}

// flush opens the file on first use (writing the header once), appends
// the buffered rows, and clears the buffer.
func (t *table) flush() error {
	if len(t.rows) == 0 && t.started {
		return nil
	}
	if !t.started {
		f, err := os.Create(t.path)
		if err != nil {
			return fmt.Errorf("output: creating %s: %w", t.path, err)
		}
		t.file = f
		t.writer = csv.NewWriter(f)
		if err := t.writer.Write(t.header); err != nil {
			return fmt.Errorf("output: writing header for %s: %w", t.path, err)
		}
		t.started = true
	}
	for _, row := range t.rows {
		if err := t.writer.Write(row); err != nil {
			return fmt.Errorf("output: writing row to %s: %w", t.path, err)
		}
	}
	t.rows = t.rows[:0]
	t.writer.Flush()
	return t.writer.Error()
}

func (t *table) close() error {
	if t.file == nil {
		return nil
	}
	return t.file.Close()
}

// Sink implements bucket.ResultSink, plus the FL-specific tables the
// fl package writes to directly (§6).
type Sink struct {
	positions *table
	rxCounts  *table
	txData    *table
	flState   *table
	flModel   *table
}

// New builds a Sink writing every table under dir, creating it if absent.
func New(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output: creating output dir %s: %w", dir, err)
	}
	return &Sink{
		positions: newTable(dir, "positions", []string{"time_step", "agent_id", "x", "y", "velocity"}),
		rxCounts: newTable(dir, "rx_counts", []string{
			"time_step", "agent_id", "attempted_agent_count", "attempted_data_count", "attempted_data_size",
			"feasible_agent_count", "feasible_data_count", "feasible_data_size", "success_rate",
		}),
		txData: newTable(dir, "tx_data", []string{
			"time_step", "agent_id", "selected_agent", "distance", "data_count", "link_found",
			"tx_order", "tx_status", "payload_size", "tx_fail_reason", "latency",
		}),
		flState: newTable(dir, "fl_state", []string{"time_step", "agent_id", "state"}),
		flModel: newTable(dir, "fl_model", []string{
			"time_step", "agent_id", "target_id", "agent_state", "model_level", "direction", "status", "accuracy",
		}),
	}, nil
}

func f64(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
func i64(v int64) string   { return strconv.FormatInt(v, 10) }
func u64(v uint64) string  { return strconv.FormatUint(v, 10) }

// AddPosition buffers one Positions row (§6).
func (s *Sink) AddPosition(t tick.Tick, id agentid.ID, state geo.MapState) {
	velocity := ""
	if state.Velocity != nil {
		velocity = f64(*state.Velocity)
	}
	s.positions.append([]string{u64(uint64(t)), id.String(), f64(state.X), f64(state.Y), velocity})
}

// AddRxCounts buffers one Rx counts row (§6).
func (s *Sink) AddRxCounts(t tick.Tick, id agentid.ID, stats flow.Stats) {
	in := stats.Incoming
	s.rxCounts.append([]string{
		u64(uint64(t)), id.String(),
		i64(in.Attempted.AgentCount), i64(in.Attempted.DataCount), i64(in.Attempted.DataSize),
		i64(in.Feasible.AgentCount), i64(in.Feasible.DataCount), i64(in.Feasible.DataSize),
		f64(stats.SuccessRate()),
	})
}

// AddTxRecord buffers one Tx data row (§6).
func (s *Sink) AddTxRecord(t tick.Tick, id agentid.ID, metrics netslice.TxMetrics, selected agentid.ID, distance float64, dataCount int64, linkFound bool, failReason string) {
	status := metrics.Status.String()
	if metrics.Status == netslice.Ok {
		failReason = ""
	}
	s.txData.append([]string{
		u64(uint64(t)), id.String(), selected.String(), f64(distance), i64(dataCount),
		strconv.FormatBool(linkFound), i64(int64(metrics.TxOrder)), status, i64(metrics.PayloadSize),
		failReason, i64(int64(metrics.Latency)),
	})
}

// AddFLState buffers one FL state row, called directly by package fl
// rather than through bucket.ResultSink (§6 "FL state").
func (s *Sink) AddFLState(t tick.Tick, id agentid.ID, state string) {
	s.flState.append([]string{u64(uint64(t)), id.String(), state})
}

// AddFLModelUpdate buffers one FL model update row (§6 "FL model update").
func (s *Sink) AddFLModelUpdate(t tick.Tick, id, targetID agentid.ID, agentState, modelLevel, direction, status string, accuracy float64) {
	s.flModel.append([]string{
		u64(uint64(t)), id.String(), targetID.String(), agentState, modelLevel, direction, status, f64(accuracy),
	})
}

// Flush writes every table's buffered rows concurrently via an errgroup,
// the teacher's batch-then-flush idiom generalized from a single channel
// drain to five independent tables (§6 "flushed at output_interval").
func (s *Sink) Flush(_ tick.Tick) {
	var g errgroup.Group
	for _, t := range []*table{s.positions, s.rxCounts, s.txData, s.flState, s.flModel} {
		t := t
		g.Go(t.flush)
	}
	if err := g.Wait(); err != nil {
		log.Println("output: flush:", err)
	}
}

// Close flushes one last time and closes every underlying file.
func (s *Sink) Close() error {
	s.Flush(0)
	for _, t := range []*table{s.positions, s.rxCounts, s.txData, s.flState, s.flModel} {
		if err := t.close(); err != nil {
			return err
		}
	}
	return nil
}
