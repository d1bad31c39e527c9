package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/board"
)

var errMalformed = errors.New("malformed input")

// console reads answers line by line. ok is false once input is exhausted.
type console struct {
	in  *bufio.Scanner
	out io.Writer
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{in: bufio.NewScanner(in), out: out}
}

func (c *console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) ask(prompt string) (string, bool) {
	line, ok := c.askLine(prompt)
	return strings.TrimSpace(line), ok
}

// askLine returns the answer as typed, without the line ending.
func (c *console) askLine(prompt string) (string, bool) {
	c.printf("%s", prompt)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSuffix(c.in.Text(), "\r"), true
}

// choose re-prompts until it reads a number between 1 and max.
func (c *console) choose(prompt string, max int) (int, bool) {
	for {
		line, ok := c.ask(prompt)
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(line)
		if err == nil && n >= 1 && n <= max {
			return n, true
		}
		c.printf("Please enter a number from 1 to %d.\n", max)
	}
}

// parseTarget reads "x y".
func parseTarget(line string) (board.Point, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return board.Point{}, fmt.Errorf("%w: want \"x y\"", errMalformed)
	}
	return parsePoint(fields[0], fields[1])
}

// parsePlacement reads "size x y h|v". A single-cell ship may leave out the
// direction.
func parsePlacement(line string) (board.Placement, error) {
	fields := strings.Fields(line)
	if len(fields) == 3 && fields[0] == "1" {
		fields = append(fields, "h")
	}
	if len(fields) != 4 {
		return board.Placement{}, fmt.Errorf("%w: want \"size x y h|v\"", errMalformed)
	}

	size, err := strconv.Atoi(fields[0])
	if err != nil {
		return board.Placement{}, fmt.Errorf("%w: size %q", errMalformed, fields[0])
	}
	origin, err := parsePoint(fields[1], fields[2])
	if err != nil {
		return board.Placement{}, err
	}

	var dir board.Orientation
	switch strings.ToLower(fields[3]) {
	case "h", "horizontal":
		dir = board.Horizontal
	case "v", "vertical":
		dir = board.Vertical
	default:
		return board.Placement{}, fmt.Errorf("%w: direction %q", errMalformed, fields[3])
	}
	return board.Placement{Origin: origin, Size: size, Dir: dir}, nil
}

func parsePoint(xs, ys string) (board.Point, error) {
	x, err := strconv.ParseInt(xs, 10, 32)
	if err != nil {
		return board.Point{}, fmt.Errorf("%w: x %q", errMalformed, xs)
	}
	y, err := strconv.ParseInt(ys, 10, 32)
	if err != nil {
		return board.Point{}, fmt.Errorf("%w: y %q", errMalformed, ys)
	}
	return board.Point{X: int32(x), Y: int32(y)}, nil
}
