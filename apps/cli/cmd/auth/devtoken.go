package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	platformauth "github.com/steelworks-digital/vms-server/platform/go/auth"
)

// Command groups auth helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Auth helpers for dev/local use",
	}

	cmd.AddCommand(devTokenCommand())
	return cmd
}

func devTokenCommand() *cobra.Command {
	var (
		secret    string
		adminID   string
		username  string
		plant     string
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Generate an HS256 admin JWT for dev/local use",
		RunE: func(cmd *cobra.Command, args []string) error {
			id := adminID
			if id == "" {
				id = uuid.New().String()
			}

			creds := platformauth.AdminCredentials{
				ID:       id,
				Username: username,
			}
			if plant != "" {
				creds.Plant = &plant
			}

			token, err := platformauth.SignAdminToken([]byte(secret), creds, expiresIn, time.Now().UTC())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret (must match the server's JWT_SECRET)")
	cmd.Flags().StringVar(&username, "username", "", "username claim")
	cmd.Flags().StringVar(&adminID, "admin-id", "", "id claim (defaults to a random UUID)")
	cmd.Flags().StringVar(&plant, "plant", "", "plant claim (omit for a super admin token)")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", time.Hour, "token lifetime (e.g. 30m, 2h)")

	_ = cmd.MarkFlagRequired("secret")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}
