// Package world provides the toroidal grid agents occupy.
// Cells hold any number of occupants so cops and citizens can share a cell;
// movement only ever targets cells that are empty.
package world

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPosition reports a coordinate outside the grid, or a move onto
	// a cell already occupied by someone else. Agent logic only offers cells
	// confirmed empty, so this is a caller bug.
	ErrInvalidPosition = errors.New("world: invalid position")

	// ErrNotPlaced reports a move of an agent that is not on the field.
	ErrNotPlaced = errors.New("world: agent not placed")
)

// Coord is a cell position. X runs along the width, Y along the height.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Field is a width × height torus with multi-occupancy cells, keyed by a
// stable agent identity. Position lives here and nowhere else.
type Field[ID comparable] struct {
	Width  int
	Height int

	cells [][]ID       // row-major, y*Width+x; occupants in insertion order
	where map[ID]Coord // reverse index: agent → cell
}

// NewField creates an empty field.
func NewField[ID comparable](width, height int) *Field[ID] {
	return &Field[ID]{
		Width:  width,
		Height: height,
		cells:  make([][]ID, width*height),
		where:  make(map[ID]Coord),
	}
}

// InBounds returns true if the coordinate lies on the grid without wrapping.
func (f *Field[ID]) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < f.Width && c.Y >= 0 && c.Y < f.Height
}

// Wrap normalizes any coordinate onto the torus.
func (f *Field[ID]) Wrap(x, y int) Coord {
	return Coord{X: mod(x, f.Width), Y: mod(y, f.Height)}
}

// Place inserts id into the occupant set at pos. An agent already on the
// field is moved off its old cell first.
func (f *Field[ID]) Place(id ID, pos Coord) error {
	if !f.InBounds(pos) {
		return fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrInvalidPosition, pos.X, pos.Y, f.Width, f.Height)
	}
	f.Remove(id)
	i := f.index(pos)
	f.cells[i] = append(f.cells[i], id)
	f.where[id] = pos
	return nil
}

// Remove deletes id from its current cell. No-op if it is not on the field.
func (f *Field[ID]) Remove(id ID) {
	pos, ok := f.where[id]
	if !ok {
		return
	}
	i := f.index(pos)
	occ := f.cells[i]
	for j, o := range occ {
		if o == id {
			f.cells[i] = append(occ[:j], occ[j+1:]...)
			break
		}
	}
	if len(f.cells[i]) == 0 {
		f.cells[i] = nil
	}
	delete(f.where, id)
}

// Move relocates id to pos. The destination must be in bounds and either
// empty or the agent's current cell.
func (f *Field[ID]) Move(id ID, pos Coord) error {
	cur, ok := f.where[id]
	if !ok {
		return ErrNotPlaced
	}
	if !f.InBounds(pos) {
		return fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrInvalidPosition, pos.X, pos.Y, f.Width, f.Height)
	}
	if cur == pos {
		return nil
	}
	if len(f.cells[f.index(pos)]) > 0 {
		return fmt.Errorf("%w: (%d,%d) occupied", ErrInvalidPosition, pos.X, pos.Y)
	}
	return f.Place(id, pos)
}

// Position returns the cell id occupies.
func (f *Field[ID]) Position(id ID) (Coord, bool) {
	pos, ok := f.where[id]
	return pos, ok
}

// Contains reports whether id is on the field.
func (f *Field[ID]) Contains(id ID) bool {
	_, ok := f.where[id]
	return ok
}

// Occupants returns the agents in the cell at pos, in insertion order.
// The returned slice must not be modified.
func (f *Field[ID]) Occupants(pos Coord) []ID {
	if !f.InBounds(pos) {
		return nil
	}
	return f.cells[f.index(pos)]
}

// IsEmpty returns true if nobody occupies pos.
func (f *Field[ID]) IsEmpty(pos Coord) bool {
	return len(f.Occupants(pos)) == 0
}

// Len returns the number of agents on the field.
func (f *Field[ID]) Len() int {
	return len(f.where)
}

// Neighborhood returns every cell within Chebyshev distance radius of pos,
// wrapping on both axes, in row-major order relative to pos. That is
// (2·radius+1)² cells whenever the window fits the grid; an axis the window
// would wrap onto itself is covered exactly once instead.
func (f *Field[ID]) Neighborhood(pos Coord, radius int) []Coord {
	if radius < 0 {
		radius = 0
	}
	ys := axisOffsets(pos.Y, radius, f.Height)
	xs := axisOffsets(pos.X, radius, f.Width)
	cells := make([]Coord, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			cells = append(cells, f.Wrap(x, y))
		}
	}
	return cells
}

// EmptyCells filters cells to the unoccupied ones, preserving order.
func (f *Field[ID]) EmptyCells(cells []Coord) []Coord {
	var out []Coord
	for _, c := range cells {
		if f.IsEmpty(c) {
			out = append(out, c)
		}
	}
	return out
}

// FreeFor filters cells to those id may move to: empty cells plus the cell
// id itself occupies. The current cell is kept so staying is an option.
func (f *Field[ID]) FreeFor(id ID, cells []Coord) []Coord {
	cur, placed := f.where[id]
	var out []Coord
	for _, c := range cells {
		if f.IsEmpty(c) || (placed && c == cur) {
			out = append(out, c)
		}
	}
	return out
}

// VacantCells returns every empty cell on the grid, row-major.
func (f *Field[ID]) VacantCells() []Coord {
	var out []Coord
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			if len(f.cells[y*f.Width+x]) == 0 {
				out = append(out, Coord{X: x, Y: y})
			}
		}
	}
	return out
}

func (f *Field[ID]) index(c Coord) int {
	return c.Y*f.Width + c.X
}

// axisOffsets lists the raw (unwrapped) coordinates a window of the given
// radius spans on one axis. A window as wide as the axis covers it once.
func axisOffsets(center, radius, size int) []int {
	if 2*radius+1 >= size {
		out := make([]int, size)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, 2*radius+1)
	for d := -radius; d <= radius; d++ {
		out = append(out, center+d)
	}
	return out
}

func mod(a, n int) int {
	if n <= 0 {
		return 0
	}
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
