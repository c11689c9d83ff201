package domain

import "fmt"

// State is the phase of a game.
type State uint8

const (
	InProgress State = iota
	Won
	Draw
)

func (s State) String() string {
	switch s {
	case Won:
		return "won"
	case Draw:
		return "draw"
	default:
		return "in_progress"
	}
}

// Status is derived from a board on read and never stored.
type Status struct {
	State  State
	Winner Cell
	Line   [3]int
	Next   Cell
}

func (st Status) String() string {
	switch st.State {
	case Won:
		return "Winner: " + st.Winner.String()
	case Draw:
		return "Draw"
	default:
		return "Next player: " + st.Next.String()
	}
}

// Winning reports whether cell i is part of the winning line.
func (st Status) Winning(i int) bool {
	if st.State != Won {
		return false
	}
	for _, c := range st.Line {
		if c == i {
			return true
		}
	}
	return false
}

// Snapshot is an immutable copy of a session taken for rendering.
type Snapshot struct {
	Board      Board
	History    []MoveRecord
	Step       int
	Next       Cell
	Descending bool
	Status     Status
}

// Entry is one line of the rendered move list.
type Entry struct {
	Step        int
	Description string
	Current     bool
}

// Entries returns the move list in display order.
func (s Snapshot) Entries() []Entry {
	out := make([]Entry, len(s.History))
	for i, rec := range s.History {
		pos := i
		if s.Descending {
			pos = len(s.History) - 1 - i
		}
		out[pos] = Entry{Step: i, Description: Describe(i, rec), Current: i == s.Step}
	}
	return out
}

// Describe returns the move-list label for history entry step.
func Describe(step int, rec MoveRecord) string {
	if rec.IsStart() {
		return "Go to game start"
	}
	return fmt.Sprintf("Go to move #%d (col, row): (%d, %d)", step, rec.Coord.Col, rec.Coord.Row)
}
