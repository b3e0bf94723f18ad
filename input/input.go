// Package input implements the streamed CSV input readers (§6 "Streamed
// input files"): mobility, link, and power-schedule files. No pack
// library covers this row-group-by-time_step CSV shape, so these readers
// are built on encoding/csv directly, the same justified stdlib choice as
// package output's writers.
package input

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"disolv-sim/agentcore"
	"disolv-sim/agentid"
	"disolv-sim/geo"
	"disolv-sim/linker"
	"disolv-sim/tick"
)

// MobilityReader streams geo.Row batches from a mobility CSV file,
// grouping consecutive rows that share one time_step (§6 "row-group-
// partitioned by increasing time").
type MobilityReader struct {
	r       *csv.Reader
	f       *os.File
	pending []string
	done    bool
}

// NewMobilityReader opens path and discards its header row.
func NewMobilityReader(path string) (*MobilityReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: opening %s: %w", path, err)
	}
	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil {
		f.Close()
		return nil, fmt.Errorf("input: reading header of %s: %w", path, err)
	}
	return &MobilityReader{r: r, f: f}, nil
}

// Close releases the underlying file handle.
func (m *MobilityReader) Close() error { return m.f.Close() }

// Next implements geo.Reader.
func (m *MobilityReader) Next() ([]geo.Row, bool) {
	var rows []geo.Row
	var groupStep tick.Tick
	haveGroup := false

	for {
		var record []string
		if m.pending != nil {
			record, m.pending = m.pending, nil
		} else {
			if m.done {
				break
			}
			rec, err := m.r.Read()
			if err == io.EOF {
				m.done = true
				break
			}
			if err != nil {
				m.done = true
				break
			}
			record = rec
		}

		step, err := strconv.ParseUint(record[0], 10, 64)
		if err != nil {
			continue
		}
		if haveGroup && tick.Tick(step) != groupStep {
			m.pending = record
			break
		}
		groupStep = tick.Tick(step)
		haveGroup = true
		rows = append(rows, parseMobilityRow(groupStep, record))
	}

	return rows, len(rows) > 0
}

func parseMobilityRow(step tick.Tick, record []string) geo.Row {
	agentIDVal, _ := strconv.ParseUint(record[1], 10, 64)
	x, _ := strconv.ParseFloat(record[2], 64)
	y, _ := strconv.ParseFloat(record[3], 64)

	row := geo.Row{TimeStep: step, AgentID: agentid.ID(agentIDVal), X: x, Y: y}
	if len(record) > 4 && record[4] != "" {
		v, err := strconv.ParseFloat(record[4], 64)
		if err == nil {
			row.Velocity = &v
		}
	}
	return row
}

// LinkReader streams linker.Row batches from a link CSV file, grouped the
// same way as MobilityReader.
type LinkReader struct {
	r       *csv.Reader
	f       *os.File
	pending []string
	done    bool
}

// NewLinkReader opens path and discards its header row.
func NewLinkReader(path string) (*LinkReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: opening %s: %w", path, err)
	}
	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil {
		f.Close()
		return nil, fmt.Errorf("input: reading header of %s: %w", path, err)
	}
	return &LinkReader{r: r, f: f}, nil
}

// Close releases the underlying file handle.
func (l *LinkReader) Close() error { return l.f.Close() }

// Next implements linker.Reader.
func (l *LinkReader) Next() ([]linker.Row, bool) {
	var rows []linker.Row
	var groupStep tick.Tick
	haveGroup := false

	for {
		var record []string
		if l.pending != nil {
			record, l.pending = l.pending, nil
		} else {
			if l.done {
				break
			}
			rec, err := l.r.Read()
			if err == io.EOF {
				l.done = true
				break
			}
			if err != nil {
				l.done = true
				break
			}
			record = rec
		}

		step, err := strconv.ParseUint(record[0], 10, 64)
		if err != nil {
			continue
		}
		if haveGroup && tick.Tick(step) != groupStep {
			l.pending = record
			break
		}
		groupStep = tick.Tick(step)
		haveGroup = true
		rows = append(rows, parseLinkRow(groupStep, record))
	}

	return rows, len(rows) > 0
}

func parseLinkRow(step tick.Tick, record []string) linker.Row {
	agentIDVal, _ := strconv.ParseUint(record[1], 10, 64)
	targetIDVal, _ := strconv.ParseUint(record[2], 10, 64)
	distance, _ := strconv.ParseFloat(record[3], 64)

	row := linker.Row{TimeStep: step, AgentID: agentid.ID(agentIDVal), TargetID: agentid.ID(targetIDVal), Distance: distance}
	if len(record) > 4 && record[4] != "" {
		load, err := strconv.ParseFloat(record[4], 64)
		if err == nil {
			row.Load = &load
		}
	}
	return row
}

// LoadPowerSchedule reads a power-schedule file: one row per agent, with
// the on-ticks and off-ticks columns each a semicolon-joined list of
// equal length (§6 "two parallel arrays of on- and off-ticks").
func LoadPowerSchedule(path string) (map[agentid.ID]*agentcore.PowerSchedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("input: reading header of %s: %w", path, err)
	}

	schedules := make(map[agentid.ID]*agentcore.PowerSchedule)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("input: reading %s: %w", path, err)
		}

		agentIDVal, _ := strconv.ParseUint(record[0], 10, 64)
		ons, err := parseTickList(record[1])
		if err != nil {
			return nil, fmt.Errorf("input: %s: on-ticks: %w", path, err)
		}
		offs, err := parseTickList(record[2])
		if err != nil {
			return nil, fmt.Errorf("input: %s: off-ticks: %w", path, err)
		}
		schedules[agentid.ID(agentIDVal)] = agentcore.NewPowerSchedule(ons, offs)
	}
	return schedules, nil
}

func parseTickList(field string) ([]tick.Tick, error) {
	if field == "" {
		return nil, nil
	}
	var ticks []tick.Tick
	start := 0
	for i := 0; i <= len(field); i++ {
		if i == len(field) || field[i] == ';' {
			v, err := strconv.ParseUint(field[start:i], 10, 64)
			if err != nil {
				return nil, err
			}
			ticks = append(ticks, tick.Tick(v))
			start = i + 1
		}
	}
	return ticks, nil
}
