package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gapcards-backend/internal/models"
)

// sheetExport is the shape accepted by import: one graded answer sheet with
// its per-question evaluations.
type sheetExport struct {
	Sheet       models.AnswerSheet `json:"sheet"`
	Evaluations []models.GapRecord `json:"evaluations"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a graded answer sheet into a SQLite database",
		Long:  "Import a graded answer sheet from JSON (stdin or --file) so that generate can run offline.",
		Run:   runImport,
	}

	cmd.Flags().String("file", "", "Read from file instead of stdin")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	file, _ := cmd.Flags().GetString("file")

	var (
		data []byte
		err  error
	)
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		exitErr("read input", err)
	}

	var in sheetExport
	if err := json.Unmarshal(data, &in); err != nil {
		exitErr("parse json", err)
	}
	if in.Sheet.ID == uuid.Nil || in.Sheet.StudentID == uuid.Nil {
		exitErr("import", errors.New("sheet.id and sheet.student_id are required"))
	}

	e := mustOpenEngine()
	defer e.close()

	if e.sheets == nil {
		e.exit("import", errors.New("answer sheets can only be imported into SQLite"))
	}
	if err := e.sheets.ImportSheet(cmd.Context(), &in.Sheet, in.Evaluations); err != nil {
		e.exit("import", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"sheet_id":%q,"evaluations":%d}`+"\n", in.Sheet.ID, len(in.Evaluations))
}
