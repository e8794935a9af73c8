package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"gapcards-backend/internal/database"
	"gapcards-backend/internal/repository"
)

func init() {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long:  "Apply the SQL files in --dir to a Postgres database. SQLite files are migrated on open.",
		Run:   runMigrate,
	}

	cmd.Flags().String("dir", "migrations", "Migrations directory")
	cmd.Flags().Bool("dry-run", false, "List pending migrations without applying them")

	RootCmd.AddCommand(cmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	dir, _ := cmd.Flags().GetString("dir")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	dsn := getDBPath()
	if !isPostgres(dsn) {
		if path, ok := repository.SQLitePath(dsn); ok {
			dsn = path
		}
		repo, err := repository.NewSQLiteFlashcardRepo(dsn)
		if err != nil {
			exitErr("open store", err)
		}
		repo.Close()
		fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"driver":"sqlite","path":%q}`+"\n", dsn)
		return
	}

	pool, err := database.NewPostgresPool(dsn, 2)
	if err != nil {
		exitErr("connect", err)
	}
	defer pool.Close()

	pending, err := database.PendingMigrations(cmd.Context(), pool, dir)
	if err != nil {
		pool.Close()
		exitErr("list migrations", err)
	}
	if pending == nil {
		pending = []string{}
	}

	if !dryRun && len(pending) > 0 {
		if err := database.RunMigrations(cmd.Context(), pool, dir); err != nil {
			pool.Close()
			exitErr("migrate", err)
		}
	}

	printJSON(cmd.OutOrStdout(), map[string]any{
		"ok":      true,
		"driver":  "postgres",
		"dry_run": dryRun,
		"pending": pending,
	})
}
