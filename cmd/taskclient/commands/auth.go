package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmaster/taskclient/internal/domain/entities"
)

func (c *CLI) newLoginCommand() *cobra.Command {
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Log in with your email",
		Long:  "Log in with your email. When no account exists for it you are offered to create one.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.App()
			if err != nil {
				return err
			}

			identity, err := app.Auth.Login(cmd.Context(), args[0])
			if errors.Is(err, entities.ErrUserNotFound) {
				create := assumeYes
				if !create {
					create, err = confirm(cmd, "No account found for this email. Create one?")
					if err != nil {
						return err
					}
				}
				if !create {
					fmt.Fprintln(cmd.OutOrStdout(), "Login cancelled")
					return nil
				}
				identity, err = app.Auth.Signup(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", identity.Email)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Create the account without asking when it does not exist")
	return cmd
}

func (c *CLI) newSignupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "signup EMAIL",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.App()
			if err != nil {
				return err
			}

			identity, err := app.Auth.Signup(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Account created, logged in as %s\n", identity.Email)
			return nil
		},
	}
}

func (c *CLI) newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.App()
			if err != nil {
				return err
			}

			if err := app.Auth.Logout(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (c *CLI) newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.App()
			if err != nil {
				return err
			}

			identity, ok := app.Session.Current()
			if !ok {
				return fmt.Errorf("%w: run 'taskclient login EMAIL'", entities.ErrNotAuthenticated)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Email:   %s\n", identity.Email)
			fmt.Fprintf(out, "User ID: %s\n", identity.ID)
			if identity.CreatedAt != nil {
				fmt.Fprintf(out, "Since:   %s\n", identity.CreatedAt.Local().Format("2006-01-02"))
			}
			fmt.Fprintf(out, "Profile: %s\n", app.Config.Session.Profile)
			return nil
		},
	}
}
