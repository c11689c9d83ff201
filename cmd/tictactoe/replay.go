package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jaminalder/tictactoe-timetravel/internal/domain"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <cell>...",
	Short: "Play cells 0-8 in order and print the resulting game",
	Long: `Applies each cell index as the next move of a fresh game, X first, and prints
the board, the status and the move list. Moves on occupied cells or after the
game is decided are ignored, just like clicks in the browser.`,
	Example: "  tictactoe replay 0 4 1 3 2\n  tictactoe replay --step 2 --desc 0 4 1 3",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := domain.NewSession()
		for _, arg := range args {
			i, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("%w: %q", domain.ErrInvalidIndex, arg)
			}
			if s, err = s.ApplyMove(i); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("step") {
			step, _ := cmd.Flags().GetInt("step")
			var err error
			if s, err = s.JumpTo(step); err != nil {
				return err
			}
		}
		if desc, _ := cmd.Flags().GetBool("desc"); desc {
			s = s.ToggleSortOrder()
		}
		renderText(cmd.OutOrStdout(), s.Snapshot())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Int("step", 0, "History step to show after replaying")
	replayCmd.Flags().Bool("desc", false, "List moves latest first")
}

// renderText draws a snapshot for the terminal. Winning cells are bracketed.
func renderText(w io.Writer, snap domain.Snapshot) {
	for r := 0; r < 3; r++ {
		cells := make([]string, 3)
		for c := 0; c < 3; c++ {
			i := r*3 + c
			mark := snap.Board[i].String()
			if mark == "" {
				mark = "."
			}
			if snap.Status.Winning(i) {
				mark = "[" + mark + "]"
			} else {
				mark = " " + mark + " "
			}
			cells[c] = mark
		}
		fmt.Fprintln(w, strings.Join(cells, "|"))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, snap.Status)
	for _, e := range snap.Entries() {
		marker := "  "
		if e.Current {
			marker = "> "
		}
		fmt.Fprintf(w, "%s%d. %s\n", marker, e.Step, e.Description)
	}
}
