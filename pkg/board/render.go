package board

import (
	"bytes"
	"fmt"
	"strconv"
	"text/tabwriter"
)

// Render draws the board with column numbers across the top and row numbers
// down the side. Unhit ships are only drawn when reveal is set.
func (b *Board) Render(reveal bool) string {
	var buffer bytes.Buffer
	w := tabwriter.NewWriter(&buffer, 3, 0, 1, ' ', 0)

	fmt.Fprint(w, "\t")
	for x := 0; x < Size; x++ {
		fmt.Fprint(w, strconv.Itoa(x)+"\t")
	}
	fmt.Fprint(w, "\n")

	for y := 0; y < Size; y++ {
		fmt.Fprint(w, strconv.Itoa(y)+"\t")
		for x := 0; x < Size; x++ {
			fmt.Fprint(w, string(symbol(b[x][y], reveal))+"\t")
		}
		fmt.Fprint(w, "\n")
	}
	w.Flush()
	return buffer.String()
}

func symbol(c Cell, reveal bool) byte {
	switch c {
	case CellShip:
		if reveal {
			return 'S'
		}
	case CellHit:
		return 'X'
	case CellMiss:
		return 'O'
	case CellSunk:
		return '#'
	}
	return '.'
}
