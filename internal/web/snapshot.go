package web

import "github.com/jaminalder/tictactoe-timetravel/internal/domain"

type statusJSON struct {
	State  string `json:"state"`
	Text   string `json:"text"`
	Winner string `json:"winner,omitempty"`
	Line   []int  `json:"line,omitempty"`
	Next   string `json:"next,omitempty"`
}

type recordJSON struct {
	Step        int      `json:"step"`
	Board       []string `json:"board"`
	Index       *int     `json:"index,omitempty"`
	Row         int      `json:"row,omitempty"`
	Col         int      `json:"col,omitempty"`
	Description string   `json:"description"`
}

type snapshotJSON struct {
	ID             string       `json:"id"`
	Board          []string     `json:"board"`
	History        []recordJSON `json:"history"`
	CurrentStep    int          `json:"currentStep"`
	NextPlayer     string       `json:"nextPlayer"`
	SortDescending bool         `json:"sortDescending"`
	Status         statusJSON   `json:"status"`
}

func boardJSON(b domain.Board) []string {
	out := make([]string, len(b))
	for i, c := range b {
		out[i] = c.String()
	}
	return out
}

func newSnapshotJSON(id string, snap domain.Snapshot) snapshotJSON {
	out := snapshotJSON{
		ID:             id,
		Board:          boardJSON(snap.Board),
		History:        make([]recordJSON, len(snap.History)),
		CurrentStep:    snap.Step,
		NextPlayer:     snap.Next.String(),
		SortDescending: snap.Descending,
		Status: statusJSON{
			State: snap.Status.State.String(),
			Text:  snap.Status.String(),
		},
	}
	switch snap.Status.State {
	case domain.Won:
		out.Status.Winner = snap.Status.Winner.String()
		out.Status.Line = snap.Status.Line[:]
	case domain.InProgress:
		out.Status.Next = snap.Status.Next.String()
	}
	for i, rec := range snap.History {
		r := recordJSON{Step: i, Board: boardJSON(rec.Board), Description: domain.Describe(i, rec)}
		if !rec.IsStart() {
			idx := rec.Index
			r.Index = &idx
			r.Row, r.Col = rec.Coord.Row, rec.Coord.Col
		}
		out.History[i] = r
	}
	return out
}
