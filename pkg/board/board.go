package board

import "errors"

// Size is the width and height of every board.
const Size = 10

var (
	ErrOutOfRange     = errors.New("coordinates outside the board")
	ErrBadOrientation = errors.New("orientation must be horizontal or vertical")
	ErrBadPlacement   = errors.New("ship does not fit or touches another ship")
)

type Cell int32

const (
	CellEmpty Cell = 0
	CellShip  Cell = 1
	CellHit   Cell = 2
	CellMiss  Cell = 3
	CellSunk  Cell = 4
)

// Resolved reports whether a shot has already landed on the cell.
func (c Cell) Resolved() bool {
	return c == CellHit || c == CellMiss || c == CellSunk
}

type Orientation int32

const (
	Horizontal Orientation = 0
	Vertical   Orientation = 1
)

func (o Orientation) Valid() bool {
	return o == Horizontal || o == Vertical
}

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// Point addresses a cell. X is the column, Y the row.
type Point struct {
	X int32
	Y int32
}

func (p Point) InBounds() bool {
	return p.X >= 0 && p.X < Size && p.Y >= 0 && p.Y < Size
}

// Step returns the i-th cell of a ship starting at p.
func (p Point) Step(i int, dir Orientation) Point {
	if dir == Vertical {
		return Point{X: p.X, Y: p.Y + int32(i)}
	}
	return Point{X: p.X + int32(i), Y: p.Y}
}

// Board is indexed [x][y]. It holds no pointers so it can live inside the
// shared arena.
type Board [Size][Size]Cell

func (b *Board) At(p Point) Cell {
	return b[p.X][p.Y]
}

func (b *Board) Set(p Point, c Cell) {
	b[p.X][p.Y] = c
}

// CanPlace reports whether a ship of the given size fits at origin without
// touching any ship already on the board, diagonals included.
func (b *Board) CanPlace(origin Point, size int, dir Orientation) bool {
	if size < 1 || size > MaxShipSize || !dir.Valid() {
		return false
	}
	if !origin.InBounds() || !origin.Step(size-1, dir).InBounds() {
		return false
	}

	for i := 0; i < size; i++ {
		c := origin.Step(i, dir)
		if b.At(c) != CellEmpty {
			return false
		}
		for dx := int32(-1); dx <= 1; dx++ {
			for dy := int32(-1); dy <= 1; dy++ {
				n := Point{X: c.X + dx, Y: c.Y + dy}
				if n.InBounds() && b.At(n) != CellEmpty {
					return false
				}
			}
		}
	}
	return true
}

// Place marks the ship's cells and records them on s. Callers check
// CanPlace first.
func (b *Board) Place(s *Ship, origin Point, size int, dir Orientation) {
	*s = Ship{
		Size:   int32(size),
		Dir:    dir,
		Origin: origin,
	}
	for i := 0; i < size; i++ {
		c := origin.Step(i, dir)
		b.Set(c, CellShip)
		s.Cells[i] = c
	}
}
