package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show deck statistics for a student",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	studentID := mustStudentID()

	e := mustOpenEngine()
	defer e.close()

	stats, err := e.cards.Stats(cmd.Context(), studentID)
	if err != nil {
		e.exit("stats", err)
	}

	if formatFlag == "text" {
		fmt.Fprintf(cmd.OutOrStdout(), "total %d  due %d  new %d  learning %d  mastered %d (%.0f%%)\n",
			stats.TotalCards, stats.Due, stats.New, stats.Learning, stats.Mastered, stats.MasteryRate)
		return
	}
	printJSON(cmd.OutOrStdout(), stats)
}
