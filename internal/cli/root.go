// Package cli implements the srsctl commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gapcards-backend/internal/database"
	"gapcards-backend/internal/repository"
	"gapcards-backend/internal/services"
)

var (
	// swapped in tests
	osExit    = os.Exit
	newEngine = openEngine
)

var (
	dbPath      string
	studentFlag string
	formatFlag  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "srsctl",
	Short: "Flashcard store administration",
	Long:  "Inspect and drive the gap-driven flashcard store. Works against Postgres (DSN) or a local SQLite file.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Postgres DSN or SQLite path (default: $GAPCARDS_DB or ~/.gapcards/cards.db)")
	RootCmd.PersistentFlags().StringVarP(&studentFlag, "student", "s", "", "Student id (default: $GAPCARDS_STUDENT)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("GAPCARDS_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gapcards", "cards.db")
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func getStudentID() (uuid.UUID, error) {
	raw := studentFlag
	if raw == "" {
		raw = os.Getenv("GAPCARDS_STUDENT")
	}
	if raw == "" {
		return uuid.Nil, errors.New("--student is required")
	}
	return uuid.Parse(raw)
}

// engine is the flashcard service plus whatever stores it was built on.
type engine struct {
	cards *services.FlashcardService
	// sheets and students are only set for SQLite databases.
	sheets   *repository.SQLiteGapRepo
	students *repository.SQLiteStudentRepo
	close    func()
}

// unconfiguredGenerator stands in when no Gemini key is available.
type unconfiguredGenerator struct{}

func (unconfiguredGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("GEMINI_API_KEY is not set")
}

func openEngine(gen services.Generator, timeout time.Duration) (*engine, error) {
	if gen == nil {
		gen = unconfiguredGenerator{}
	}
	content := services.NewContentGenerator(gen, timeout)
	scheduler := services.NewScheduler(services.DefaultMaxLevel)

	dsn := getDBPath()
	if isPostgres(dsn) {
		pool, err := database.NewPostgresPool(dsn, 4)
		if err != nil {
			return nil, err
		}
		cards := repository.NewFlashcardRepo(pool)
		svc := services.NewFlashcardService(
			services.NewGapAggregator(repository.NewGapRepo(pool)),
			content,
			cards,
			scheduler,
			services.NewReviewSessionBuilder(cards, 0),
			nil,
			nil,
		)
		return &engine{cards: svc, close: pool.Close}, nil
	}

	if path, ok := repository.SQLitePath(dsn); ok {
		dsn = path
	}
	repo, err := repository.NewSQLiteFlashcardRepo(dsn)
	if err != nil {
		return nil, err
	}
	sheets := repo.Gaps()
	svc := services.NewFlashcardService(
		services.NewGapAggregator(sheets),
		content,
		repo,
		scheduler,
		services.NewReviewSessionBuilder(repo, 0),
		nil,
		nil,
	)
	return &engine{
		cards:    svc,
		sheets:   sheets,
		students: repo.Students(),
		close:    func() { repo.Close() },
	}, nil
}

// exit closes the stores and then exits; deferred closes do not run on os.Exit.
func (e *engine) exit(msg string, err error) {
	e.close()
	exitErr(msg, err)
}

func mustOpenEngine() *engine {
	e, err := newEngine(nil, 0)
	if err != nil {
		exitErr("open store", err)
	}
	return e
}

func mustStudentID() uuid.UUID {
	id, err := getStudentID()
	if err != nil {
		exitErr("student", err)
	}
	return id
}

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	osExit(1)
}
