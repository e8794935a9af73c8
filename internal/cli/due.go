package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List cards due for review",
		Long:  "List the student's cards whose next review time has passed, earliest first.",
		Run:   runDue,
	}

	cmd.Flags().IntP("limit", "l", 0, "Max cards (default 20, capped at 100)")

	RootCmd.AddCommand(cmd)
}

func runDue(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	studentID := mustStudentID()

	e := mustOpenEngine()
	defer e.close()

	cards, err := e.cards.Due(cmd.Context(), studentID, limit)
	if err != nil {
		e.exit("due", err)
	}

	out := cmd.OutOrStdout()
	if formatFlag == "text" {
		for _, c := range cards {
			fmt.Fprintf(out, "%s  L%d  %s  %s\n", c.ID, c.Level, c.NextReviewAt.Format(time.RFC3339), c.Question)
		}
		return
	}
	if cards == nil {
		fmt.Fprintln(out, "[]")
		return
	}
	printJSON(out, cards)
}
