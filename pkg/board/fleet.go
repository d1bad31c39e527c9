package board

import (
	"errors"
	"fmt"
)

const (
	// FleetSize is the number of ships each side places.
	FleetSize   = 10
	MaxShipSize = 4
)

// FleetSizes lists the fleet in the order the client offers it: one
// battleship, two cruisers, three destroyers and four boats.
var FleetSizes = [FleetSize]int{4, 3, 3, 2, 2, 2, 1, 1, 1, 1}

var ErrShipNotNeeded = errors.New("no ship of that size left to place")

type Ship struct {
	Size   int32
	Hits   int32
	Sunk   bool
	Dir    Orientation
	Origin Point
	Cells  [MaxShipSize]Point
}

func (s *Ship) Occupies(p Point) bool {
	for i := int32(0); i < s.Size; i++ {
		if s.Cells[i] == p {
			return true
		}
	}
	return false
}

// Fleet is one side's ship inventory. Only the first Count entries of Ships
// are meaningful.
type Fleet struct {
	Ships [FleetSize]Ship
	Count int32
}

func (f *Fleet) Complete() bool {
	return f.Count >= FleetSize
}

// Needs reports whether a ship of the given size is still missing.
func (f *Fleet) Needs(size int) bool {
	want := 0
	for _, s := range FleetSizes {
		if s == size {
			want++
		}
	}
	for _, s := range f.Placed() {
		if int(s.Size) == size {
			want--
		}
	}
	return want > 0
}

// Pending returns the sizes still to be placed, largest first.
func (f *Fleet) Pending() []int {
	var pending []int
	counts := map[int]int{}
	for _, s := range f.Placed() {
		counts[int(s.Size)]++
	}
	for _, size := range FleetSizes {
		if counts[size] > 0 {
			counts[size]--
			continue
		}
		pending = append(pending, size)
	}
	return pending
}

// Placed returns the ships placed so far.
func (f *Fleet) Placed() []Ship {
	n := f.Count
	if n < 0 {
		n = 0
	} else if n > FleetSize {
		n = FleetSize
	}
	return f.Ships[:n]
}

// Remaining counts placed ships that are still afloat.
func (f *Fleet) Remaining() int {
	left := 0
	for _, s := range f.Placed() {
		if !s.Sunk {
			left++
		}
	}
	return left
}

// Add validates and places the next ship of the fleet on b.
func (f *Fleet) Add(b *Board, origin Point, size int, dir Orientation) error {
	if !dir.Valid() {
		return ErrBadOrientation
	}
	if !origin.InBounds() {
		return ErrOutOfRange
	}
	if f.Complete() || !f.Needs(size) {
		return fmt.Errorf("size %d: %w", size, ErrShipNotNeeded)
	}
	if !b.CanPlace(origin, size, dir) {
		return ErrBadPlacement
	}
	b.Place(&f.Ships[f.Count], origin, size, dir)
	f.Count++
	return nil
}

// Placement describes where one ship goes.
type Placement struct {
	Origin Point
	Size   int
	Dir    Orientation
}
