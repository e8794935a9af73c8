package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <card-id>",
		Short: "Delete a card",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	cardID, err := uuid.Parse(args[0])
	if err != nil {
		exitErr("card id", err)
	}
	studentID := mustStudentID()

	e := mustOpenEngine()
	defer e.close()

	if err := e.cards.Delete(cmd.Context(), studentID, cardID); err != nil {
		e.exit("rm", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q}`+"\n", cardID)
}
