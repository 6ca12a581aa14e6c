package world

import (
	"errors"
	"testing"
)

func TestNeighborhood_CountAndWrap(t *testing.T) {
	f := NewField[int](10, 8)

	cells := f.Neighborhood(Coord{X: 0, Y: 0}, 2)
	if len(cells) != 25 {
		t.Fatalf("expected 25 cells, got %d", len(cells))
	}

	seen := make(map[Coord]bool)
	for _, c := range cells {
		if !f.InBounds(c) {
			t.Fatalf("cell %+v out of bounds", c)
		}
		if seen[c] {
			t.Fatalf("duplicate cell %+v", c)
		}
		seen[c] = true
	}
	for _, want := range []Coord{{X: 9, Y: 7}, {X: 8, Y: 6}, {X: 2, Y: 2}, {X: 0, Y: 6}} {
		if !seen[want] {
			t.Errorf("expected wrapped cell %+v in neighborhood", want)
		}
	}
}

func TestNeighborhood_RadiusZeroIsSelf(t *testing.T) {
	f := NewField[int](5, 5)
	cells := f.Neighborhood(Coord{X: 3, Y: 1}, 0)
	if len(cells) != 1 || cells[0] != (Coord{X: 3, Y: 1}) {
		t.Fatalf("expected only the center cell, got %v", cells)
	}
}

func TestNeighborhood_WindowWiderThanGrid(t *testing.T) {
	f := NewField[int](4, 3)
	cells := f.Neighborhood(Coord{X: 1, Y: 1}, 5)
	if len(cells) != 12 {
		t.Fatalf("expected each of the 12 cells once, got %d", len(cells))
	}
}

func TestPlaceRemove(t *testing.T) {
	f := NewField[int](5, 5)

	if err := f.Place(1, Coord{X: 2, Y: 2}); err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := f.Place(2, Coord{X: 2, Y: 2}); err != nil {
		t.Fatalf("place second occupant: %v", err)
	}
	if got := f.Occupants(Coord{X: 2, Y: 2}); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected occupants %v", got)
	}

	f.Remove(1)
	f.Remove(1) // no-op
	if f.Contains(1) {
		t.Fatal("agent 1 should be gone")
	}
	if got := f.Occupants(Coord{X: 2, Y: 2}); len(got) != 1 || got[0] != 2 {
		t.Fatalf("unexpected occupants after remove %v", got)
	}
	if f.Len() != 1 {
		t.Fatalf("expected 1 agent on field, got %d", f.Len())
	}

	err := f.Place(3, Coord{X: 5, Y: 0})
	if !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}
}

func TestMove(t *testing.T) {
	f := NewField[int](5, 5)
	_ = f.Place(1, Coord{X: 0, Y: 0})
	_ = f.Place(2, Coord{X: 1, Y: 0})

	if err := f.Move(1, Coord{X: 1, Y: 0}); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("move onto occupied cell: expected ErrInvalidPosition, got %v", err)
	}
	if err := f.Move(1, Coord{X: 0, Y: 0}); err != nil {
		t.Fatalf("stay in place: %v", err)
	}
	if err := f.Move(1, Coord{X: 4, Y: 4}); err != nil {
		t.Fatalf("move: %v", err)
	}
	if pos, _ := f.Position(1); pos != (Coord{X: 4, Y: 4}) {
		t.Fatalf("expected (4,4), got %+v", pos)
	}
	if !f.IsEmpty(Coord{X: 0, Y: 0}) {
		t.Fatal("old cell should be empty")
	}
	if err := f.Move(9, Coord{X: 2, Y: 2}); !errors.Is(err, ErrNotPlaced) {
		t.Fatalf("expected ErrNotPlaced, got %v", err)
	}
}

func TestEmptyCellsAndFreeFor(t *testing.T) {
	f := NewField[int](3, 3)
	_ = f.Place(1, Coord{X: 1, Y: 1})
	_ = f.Place(2, Coord{X: 0, Y: 0})

	cells := f.Neighborhood(Coord{X: 1, Y: 1}, 1)
	if got := len(f.EmptyCells(cells)); got != 7 {
		t.Fatalf("expected 7 empty cells, got %d", got)
	}

	free := f.FreeFor(1, cells)
	if len(free) != 8 {
		t.Fatalf("expected 8 free cells including own, got %d", len(free))
	}
	for _, c := range free {
		if c == (Coord{X: 0, Y: 0}) {
			t.Fatal("cell held by another agent must not be free")
		}
	}

	if got := len(f.VacantCells()); got != 7 {
		t.Fatalf("expected 7 vacant cells, got %d", got)
	}
}

func TestHardshipField_RangeAndDeterminism(t *testing.T) {
	a := HardshipField(12, 9, DefaultHardshipConfig(7))
	b := HardshipField(12, 9, DefaultHardshipConfig(7))
	if len(a) != 12*9 {
		t.Fatalf("expected %d values, got %d", 12*9, len(a))
	}
	for i, v := range a {
		if v < 0 || v > 1 {
			t.Fatalf("value %d out of range: %f", i, v)
		}
		if v != b[i] {
			t.Fatalf("value %d differs between identical seeds", i)
		}
	}
}
