package board

// Shot is the outcome of firing at a cell.
type Shot int

const (
	Miss Shot = iota
	AlreadyShot
	Hit
	Sunk
)

func (s Shot) String() string {
	switch s {
	case Miss:
		return "miss"
	case AlreadyShot:
		return "already shot"
	case Hit:
		return "hit"
	case Sunk:
		return "sunk"
	}
	return "unknown"
}

// KeepsTurn reports whether the shooter fires again after this outcome.
func (s Shot) KeepsTurn() bool {
	return s == Hit || s == Sunk
}

// ResolveShot fires at p on the target board. A ship whose hit count reaches
// its size is marked sunk and all of its cells are repainted CellSunk.
func ResolveShot(b *Board, f *Fleet, p Point) (Shot, error) {
	if !p.InBounds() {
		return Miss, ErrOutOfRange
	}

	switch cell := b.At(p); {
	case cell.Resolved():
		return AlreadyShot, nil
	case cell == CellEmpty:
		b.Set(p, CellMiss)
		return Miss, nil
	}

	b.Set(p, CellHit)
	for i := range f.Placed() {
		s := &f.Ships[i]
		if !s.Occupies(p) {
			continue
		}
		if s.Hits < s.Size {
			s.Hits++
		}
		if s.Hits == s.Size {
			s.Sunk = true
			for c := int32(0); c < s.Size; c++ {
				b.Set(s.Cells[c], CellSunk)
			}
			return Sunk, nil
		}
		return Hit, nil
	}
	return Hit, nil
}
