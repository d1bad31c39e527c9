// Package boardtest provides fixed fleets for tests.
package boardtest

import "github.com/JJ-Intelligence/SR-Sea-Battle/pkg/board"

// Packing is a legal placement of the whole fleet. Ships sit on the even rows
// with at least one empty cell between them.
var Packing = []board.Placement{
	{Origin: board.Point{X: 0, Y: 0}, Size: 4, Dir: board.Horizontal},
	{Origin: board.Point{X: 5, Y: 0}, Size: 3, Dir: board.Horizontal},
	{Origin: board.Point{X: 0, Y: 2}, Size: 3, Dir: board.Horizontal},
	{Origin: board.Point{X: 4, Y: 2}, Size: 2, Dir: board.Horizontal},
	{Origin: board.Point{X: 7, Y: 2}, Size: 2, Dir: board.Horizontal},
	{Origin: board.Point{X: 0, Y: 4}, Size: 2, Dir: board.Horizontal},
	{Origin: board.Point{X: 3, Y: 4}, Size: 1, Dir: board.Horizontal},
	{Origin: board.Point{X: 5, Y: 4}, Size: 1, Dir: board.Horizontal},
	{Origin: board.Point{X: 7, Y: 4}, Size: 1, Dir: board.Horizontal},
	{Origin: board.Point{X: 0, Y: 6}, Size: 1, Dir: board.Horizontal},
}

// Boat is the single-cell ship at the end of Packing.
var Boat = board.Point{X: 0, Y: 6}

// Water is a cell Packing leaves empty.
var Water = board.Point{X: 9, Y: 9}

// Cells returns every ship cell of Packing.
func Cells() []board.Point {
	var cells []board.Point
	for _, p := range Packing {
		for i := 0; i < p.Size; i++ {
			cells = append(cells, p.Origin.Step(i, p.Dir))
		}
	}
	return cells
}

// Fill places Packing on b and f, failing on the first rejected ship.
func Fill(b *board.Board, f *board.Fleet) error {
	for _, p := range Packing {
		if err := f.Add(b, p.Origin, p.Size, p.Dir); err != nil {
			return err
		}
	}
	return nil
}
