package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	adminsrepo "github.com/steelworks-digital/vms-server/domains/admins/be/repo"
	adminsservice "github.com/steelworks-digital/vms-server/domains/admins/be/service"
	"github.com/steelworks-digital/vms-server/platform/go/persistence"
)

// Command groups admin account management helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	cmd.AddCommand(createCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var (
		databaseURL string
		username    string
		password    string
		plant       string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account (blank plant grants access to all plants)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			store, err := persistence.NewAdminStore(pool)
			if err != nil {
				return fmt.Errorf("init admin store: %w", err)
			}

			svc := adminsservice.New(adminsrepo.NewPostgresRepository(store), adminsservice.Config{})

			var plantPtr *string
			if plant != "" {
				plantPtr = &plant
			}

			account, err := svc.Create(ctx, adminsservice.CreateInput{
				Username: username,
				Password: password,
				Plant:    plantPtr,
			})
			if err != nil {
				if errors.Is(err, adminsservice.ErrConflict) {
					return fmt.Errorf("admin %q already exists", username)
				}
				return fmt.Errorf("create admin: %w", err)
			}

			scope := "all plants"
			if account.Plant != nil {
				scope = *account.Plant
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Admin created: %s (%s) | scope: %s\n", account.Username, account.ID, scope)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&username, "username", "", "Login username")
	c.Flags().StringVar(&password, "password", "", "Login password (minimum 8 characters)")
	c.Flags().StringVar(&plant, "plant", "", "Plant scope (omit for a super admin)")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")

	return c
}
