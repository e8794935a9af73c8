package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "enroll <user-id>",
		Short: "Create the student profile for an account in a SQLite database",
		Long:  "Map an account id (the JWT user_id) to a student profile so a local server run can resolve it.",
		Args:  cobra.ExactArgs(1),
		Run:   runEnroll,
	}

	RootCmd.AddCommand(cmd)
}

func runEnroll(cmd *cobra.Command, args []string) {
	userID, err := uuid.Parse(args[0])
	if err != nil {
		exitErr("user id", err)
	}

	e := mustOpenEngine()
	defer e.close()

	if e.students == nil {
		e.exit("enroll", errors.New("students can only be enrolled in SQLite"))
	}
	studentID, err := e.students.Enroll(cmd.Context(), userID)
	if err != nil {
		e.exit("enroll", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"user_id":%q,"student_id":%q}`+"\n", userID, studentID)
}
