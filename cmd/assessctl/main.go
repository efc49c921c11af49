// Command assessctl manages assessment sessions from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/assessor/internal/store"
)

type app struct {
	dbPath string
	repo   *store.SQLiteStore
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "assessctl",
		Short:         "Manage guided assessment sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.repo != nil {
				return a.repo.Close()
			}
			return nil
		},
	}

	defaultDB := os.Getenv("DB_PATH")
	if defaultDB == "" {
		defaultDB = "./data/assessments.db"
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", defaultDB, "SQLite database path")

	root.AddCommand(
		newImportCmd(a),
		newExportCmd(a),
		newShowCmd(a),
		newNextCmd(a),
		newAnswerCmd(a),
		newListCmd(a),
	)
	return root
}

func (a *app) store() (*store.SQLiteStore, error) {
	if a.repo != nil {
		return a.repo, nil
	}
	repo, err := store.NewSQLite(a.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.dbPath, err)
	}
	a.repo = repo
	return repo, nil
}
