package domain

import (
	"errors"
	"fmt"
)

// Cell represents a board cell state.
type Cell uint8

const (
	Empty Cell = iota
	X
	O
)

func (c Cell) String() string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

// Size is the number of cells on the board.
const Size = 9

// Board is a fixed 3x3 board stored row-major.
type Board [Size]Cell

// Full reports whether no empty cell is left.
func (b Board) Full() bool {
	for _, c := range b {
		if c == Empty {
			return false
		}
	}
	return true
}

// Errors returned by domain operations.
var (
	ErrInvalidIndex = errors.New("invalid cell index")
	ErrInvalidStep  = errors.New("invalid history step")
)

// Lines lists every row, column and diagonal. Evaluate scans them in this order.
var Lines = [8][3]int{
	// rows
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	// cols
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	// diags
	{0, 4, 8}, {2, 4, 6},
}

// Result describes a completed line.
type Result struct {
	Player Cell
	Line   [3]int
}

// Evaluate returns the first completed line on b, if any.
func Evaluate(b Board) (Result, bool) {
	for _, ln := range Lines {
		a := b[ln[0]]
		if a != Empty && a == b[ln[1]] && a == b[ln[2]] {
			return Result{Player: a, Line: ln}, true
		}
	}
	return Result{}, false
}

func checkIndex(index int) error {
	if index < 0 || index >= Size {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	return nil
}

// IsMoveLegal reports whether a marker may be placed at index. A decided game
// or an occupied cell makes the move illegal; an index outside 0..8 is an error.
func IsMoveLegal(b Board, index int) (bool, error) {
	if err := checkIndex(index); err != nil {
		return false, err
	}
	if _, won := Evaluate(b); won {
		return false, nil
	}
	return b[index] == Empty, nil
}

// Coord is the 1-indexed row and column of a cell.
type Coord struct {
	Row int
	Col int
}

// CoordOf converts a cell index into its row and column.
func CoordOf(index int) Coord {
	return Coord{Row: index/3 + 1, Col: index%3 + 1}
}
