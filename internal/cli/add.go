package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gapcards-backend/internal/models"
	"gapcards-backend/internal/services"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a hand-written card",
		Run:   runAdd,
	}

	cmd.Flags().String("subject", "", "Subject (required)")
	cmd.Flags().StringP("question", "q", "", "Question (required)")
	cmd.Flags().StringP("answer", "a", "", "Answer (required)")
	cmd.Flags().String("explanation", "", "Explanation (defaults to the answer)")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")

	cmd.MarkFlagRequired("subject")
	cmd.MarkFlagRequired("question")
	cmd.MarkFlagRequired("answer")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	subject, _ := cmd.Flags().GetString("subject")
	question, _ := cmd.Flags().GetString("question")
	answer, _ := cmd.Flags().GetString("answer")
	explanation, _ := cmd.Flags().GetString("explanation")
	tags, _ := cmd.Flags().GetString("tags")
	studentID := mustStudentID()

	e := mustOpenEngine()
	defer e.close()

	card, err := e.cards.CreateCustom(cmd.Context(), studentID, models.CreateFlashcardRequest{
		Subject:     subject,
		Question:    question,
		Answer:      answer,
		Explanation: explanation,
		Tags:        splitTags(tags),
	})
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			for field, msg := range verr.Fields {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", field, msg)
			}
		}
		e.exit("add", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q}`+"\n", card.ID)
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
