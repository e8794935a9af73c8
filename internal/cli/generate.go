package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gapcards-backend/internal/services"
)

func init() {
	cmd := &cobra.Command{
		Use:   "generate <sheet-id>",
		Short: "Generate flashcards from an answer sheet's gaps",
		Long:  "Run one synchronous generation for a graded answer sheet owned by --student. Needs GEMINI_API_KEY.",
		Args:  cobra.ExactArgs(1),
		Run:   runGenerate,
	}

	cmd.Flags().String("model", "", "Gemini model (default: $GEMINI_MODEL or gemini-1.5-flash)")
	cmd.Flags().Duration("timeout", 30*time.Second, "Generation timeout")

	RootCmd.AddCommand(cmd)
}

func runGenerate(cmd *cobra.Command, args []string) {
	sheetID, err := uuid.Parse(args[0])
	if err != nil {
		exitErr("sheet id", err)
	}
	model, _ := cmd.Flags().GetString("model")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	studentID := mustStudentID()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		exitErr("generate", errors.New("GEMINI_API_KEY is not set"))
	}
	if model == "" {
		model = os.Getenv("GEMINI_MODEL")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}

	gemini, err := services.NewGeminiGenerator(apiKey, model, 1)
	if err != nil {
		exitErr("gemini client", err)
	}
	defer gemini.Close()

	e, err := openEngine(gemini, timeout)
	if err != nil {
		gemini.Close()
		exitErr("open store", err)
	}
	defer e.close()

	res, err := e.cards.GenerateFromSheet(cmd.Context(), studentID, sheetID)
	if err != nil {
		gemini.Close()
		e.exit("generate", err)
	}

	if res.NoGaps {
		fmt.Fprintln(cmd.OutOrStdout(), `{"message":"no gaps found","created_count":0}`)
		return
	}
	printJSON(cmd.OutOrStdout(), res)
}
