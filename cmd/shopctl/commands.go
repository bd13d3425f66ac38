package main

import (
	"fmt"
	"os"

	"github.com/fjod/go_jewelry/internal/auth"
	"github.com/fjod/go_jewelry/internal/catalog"
	"github.com/fjod/go_jewelry/internal/domain"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending catalog migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := opts.open()
			if err != nil {
				return err
			}
			defer repo.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied to %s\n", opts.dbPath)
			return nil
		},
	}
}

func newAddUserCmd(opts *options) *cobra.Command {
	var (
		name, email, password string
		admin                 bool
	)

	cmd := &cobra.Command{
		Use:   "add-user",
		Short: "Create a customer or admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := opts.open()
			if err != nil {
				return err
			}
			defer repo.Close()

			role := domain.RoleCustomer
			if admin {
				role = domain.RoleAdmin
			}

			// no tokens are issued here, the secret only has to be non-empty
			svc := auth.NewService(auth.NewSQLUserStore(repo.DB()), "shopctl")
			u, err := svc.Register(cmd.Context(), name, email, password, role)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", u.Role, u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "password, at least 8 characters")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newSeedCmd(opts *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load categories and products from a YAML fixture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open fixture: %w", err)
			}
			defer f.Close()

			fixture, err := catalog.LoadFixture(f)
			if err != nil {
				return err
			}

			repo, err := opts.open()
			if err != nil {
				return err
			}
			defer repo.Close()

			res, err := repo.Seed(cmd.Context(), fixture)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "categories created: %d, products created: %d, skipped: %d\n",
				res.CategoriesCreated, res.ProductsCreated, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
