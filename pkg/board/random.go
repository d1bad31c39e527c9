package board

import (
	"errors"
	"math/rand"
)

const (
	placementTries = 200
	fleetRounds    = 50
)

var ErrNoPacking = errors.New("could not pack the fleet")

// RandomFleet places every ship still pending in f at random legal positions.
// When it paints itself into a corner it starts over from the ships that were
// already placed on entry.
func RandomFleet(b *Board, f *Fleet, r *rand.Rand) error {
	startBoard, startFleet := *b, *f

	for round := 0; round < fleetRounds; round++ {
		*b, *f = startBoard, startFleet
		if fillPending(b, f, r) {
			return nil
		}
	}
	*b, *f = startBoard, startFleet
	return ErrNoPacking
}

func fillPending(b *Board, f *Fleet, r *rand.Rand) bool {
	for _, size := range f.Pending() {
		placed := false
		for try := 0; try < placementTries; try++ {
			origin := Point{X: int32(r.Intn(Size)), Y: int32(r.Intn(Size))}
			dir := Orientation(r.Intn(2))
			if f.Add(b, origin, size, dir) == nil {
				placed = true
				break
			}
		}
		if !placed {
			return false
		}
	}
	return true
}
