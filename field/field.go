// Package field implements the simulation field's spatial cell index
// (§6 config "field: { width, height, cell_size }"): a per-tick
// digitization of every agent's current position into a cellSize-sided
// grid, re-populated from scratch each tick as agents report their
// position during stage one.
//
// Grounded on the teacher's grid_world/models grid: that code digitized a
// race-track into an [x][y][vx][vy]State matrix and walked it with a
// Visit callback. The same digitize-then-visit shape is repurposed here:
// instead of track cells holding RL state values, field cells hold the set
// of agent ids currently positioned inside them.
package field

import (
	"disolv-sim/agentid"
	"disolv-sim/geo"
)

// Cell is one grid square's membership, indexed [x][y].
type Cell struct {
	X, Y    int
	Members map[agentid.ID]struct{}
}

// Field digitizes the continuous (x, y) plane into cellSize-sided square
// cells, sized by width/height from config.
type Field struct {
	Width, Height float64
	CellSize      float64
	cols, rows    int
	cells         [][]Cell
}

// New builds an empty field. Width/height/cellSize come straight from the
// `field` config block (§6).
func New(width, height, cellSize float64) *Field {
	if cellSize <= 0 {
		cellSize = 1
	}
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1

	f := &Field{Width: width, Height: height, CellSize: cellSize, cols: cols, rows: rows}
	f.cells = make([][]Cell, cols)
	for x := 0; x < cols; x++ {
		f.cells[x] = make([]Cell, rows)
		for y := 0; y < rows; y++ {
			f.cells[x][y] = Cell{X: x, Y: y, Members: map[agentid.ID]struct{}{}}
		}
	}
	return f
}

// Reset clears every cell's membership; called once per tick before
// re-indexing positions (the bucket calls this from BeforeAgents, after
// the geo mapper's snapshot for the tick has been populated).
func (f *Field) Reset() {
	f.Visit(func(c *Cell) {
		for id := range c.Members {
			delete(c.Members, id)
		}
	})
}

// Place indexes id into the cell covering the given position, clamping to
// the field's bounds so a slightly out-of-range trace point doesn't panic.
func (f *Field) Place(id agentid.ID, state geo.MapState) {
	x, y := f.cellIndex(state.X, state.Y)
	f.cells[x][y].Members[id] = struct{}{}
}

func (f *Field) cellIndex(px, py float64) (x, y int) {
	x = int(px / f.CellSize)
	y = int(py / f.CellSize)
	if x < 0 {
		x = 0
	}
	if x >= f.cols {
		x = f.cols - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= f.rows {
		y = f.rows - 1
	}
	return x, y
}

// Visit calls fn for every cell in the field, in column-major order.
func (f *Field) Visit(fn func(c *Cell)) {
	for x := range f.cells {
		for y := range f.cells[x] {
			fn(&f.cells[x][y])
		}
	}
}
