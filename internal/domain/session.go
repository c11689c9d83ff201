package domain

import (
	"fmt"
	"slices"
)

// MoveRecord is one history entry: the board after a move and where it was made.
// The first record of every session has Index -1 and a zero Coord.
type MoveRecord struct {
	Board Board
	Index int
	Coord Coord
}

// IsStart reports whether r is the start-of-game entry.
func (r MoveRecord) IsStart() bool { return r.Index < 0 }

// Session is an immutable game with its full history. Every operation returns
// a new Session and leaves the receiver usable.
type Session struct {
	history    []MoveRecord
	step       int
	xIsNext    bool
	descending bool
}

// NewSession returns a session holding only the empty board, with X to move.
func NewSession() Session {
	return Session{
		history: []MoveRecord{{Index: -1}},
		xIsNext: true,
	}
}

// Current returns the board at the selected step.
func (s Session) Current() Board { return s.history[s.step].Board }

// Step returns the selected history index.
func (s Session) Step() int { return s.step }

// Len returns the number of history entries, including the start entry.
func (s Session) Len() int { return len(s.history) }

// Next returns the marker of the player to move.
func (s Session) Next() Cell {
	if s.xIsNext {
		return X
	}
	return O
}

// Descending reports whether the move list is shown latest first.
func (s Session) Descending() bool { return s.descending }

// ApplyMove places the next marker at index on the selected board. Any history
// after the selected step is discarded. Illegal moves return s unchanged.
func (s Session) ApplyMove(index int) (Session, error) {
	board := s.Current()
	ok, err := IsMoveLegal(board, index)
	if err != nil {
		return s, err
	}
	if !ok {
		return s, nil
	}

	board[index] = s.Next()

	// Full slice expression so append never writes into a shared backing array.
	kept := s.history[:s.step+1 : s.step+1]
	next := s
	next.history = append(kept, MoveRecord{Board: board, Index: index, Coord: CoordOf(index)})
	next.step = len(next.history) - 1
	next.xIsNext = !s.xIsNext
	return next, nil
}

// JumpTo selects an earlier (or later, if not yet discarded) history entry.
func (s Session) JumpTo(step int) (Session, error) {
	if step < 0 || step >= len(s.history) {
		return s, fmt.Errorf("%w: %d (history has %d entries)", ErrInvalidStep, step, len(s.history))
	}
	next := s
	next.step = step
	next.xIsNext = step%2 == 0
	return next, nil
}

// ToggleSortOrder flips the order the move list is shown in.
func (s Session) ToggleSortOrder() Session {
	next := s
	next.descending = !s.descending
	return next
}

// Status derives the game status from the selected board.
func (s Session) Status() Status {
	board := s.Current()
	if res, ok := Evaluate(board); ok {
		return Status{State: Won, Winner: res.Player, Line: res.Line}
	}
	if board.Full() {
		return Status{State: Draw}
	}
	return Status{State: InProgress, Next: s.Next()}
}

// Snapshot returns a read-only view for rendering.
func (s Session) Snapshot() Snapshot {
	return Snapshot{
		Board:      s.Current(),
		History:    slices.Clone(s.history),
		Step:       s.step,
		Next:       s.Next(),
		Descending: s.descending,
		Status:     s.Status(),
	}
}
