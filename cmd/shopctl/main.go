// Command shopctl administers the storefront catalog database: it applies
// migrations, creates users and loads catalog fixtures.
package main

import (
	"fmt"
	"os"

	"github.com/fjod/go_jewelry/internal/catalog"
	"github.com/fjod/go_jewelry/internal/config"
	"github.com/spf13/cobra"
)

type options struct {
	dbPath         string
	migrationsPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	defaults := config.LoadCatalog()

	root := &cobra.Command{
		Use:           "shopctl",
		Short:         "Administer the storefront catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", defaults.DBPath, "SQLite catalog database path")
	root.PersistentFlags().StringVar(&opts.migrationsPath, "migrations", defaults.MigrationsPath, "migrations directory")

	root.AddCommand(newMigrateCmd(opts), newAddUserCmd(opts), newSeedCmd(opts))
	return root
}

// open returns a migrated catalog repository.
func (o *options) open() (*catalog.Repository, error) {
	repo, err := catalog.NewRepository(o.dbPath)
	if err != nil {
		return nil, err
	}
	if err := repo.RunMigrations(o.migrationsPath); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
