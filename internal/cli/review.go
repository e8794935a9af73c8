package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "review <card-id>",
		Short: "Record a review outcome",
		Long:  "Record whether the student answered a card correctly. The server computes the new level and next review time.",
		Args:  cobra.ExactArgs(1),
		Run:   runReview,
	}

	cmd.Flags().Bool("correct", false, "The answer was correct")
	cmd.Flags().Bool("missed", false, "The answer was wrong")
	cmd.MarkFlagsMutuallyExclusive("correct", "missed")
	cmd.MarkFlagsOneRequired("correct", "missed")

	RootCmd.AddCommand(cmd)
}

func runReview(cmd *cobra.Command, args []string) {
	cardID, err := uuid.Parse(args[0])
	if err != nil {
		exitErr("card id", err)
	}
	correct, _ := cmd.Flags().GetBool("correct")
	studentID := mustStudentID()

	e := mustOpenEngine()
	defer e.close()

	card, err := e.cards.Review(cmd.Context(), studentID, cardID, correct)
	if err != nil {
		e.exit("review", err)
	}

	if formatFlag == "text" {
		fmt.Fprintf(cmd.OutOrStdout(), "level %d, next review %s\n", card.Level, card.NextReviewAt.Format(time.RFC3339))
		return
	}
	printJSON(cmd.OutOrStdout(), card)
}
