package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/voltline/j1939-console/internal/accounts"
	"github.com/voltline/j1939-console/internal/audit"
)

// cliActor is the audit actor for changes made from the command line.
const cliActor = "cli"

var (
	userName string
	userRole string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage console accounts",
	Long: `Bootstrap and manage console accounts without going through the signup
flow. Users created here are active immediately.`,
}

var userCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create an active user, prompting for the password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := accounts.Role(userRole)
		if !role.Valid() {
			return fmt.Errorf("unknown role %q (viewer, editor or admin)", userRole)
		}

		prompt := promptui.Prompt{
			Label:    "Password",
			Mask:     '*',
			Validate: accounts.ValidatePassword,
		}
		password, err := prompt.Run()
		if err != nil {
			return fmt.Errorf("password: %w", err)
		}
		confirm := promptui.Prompt{
			Label: "Confirm password",
			Mask:  '*',
			Validate: func(s string) error {
				if s != password {
					return errors.New("passwords do not match")
				}
				return nil
			},
		}
		if _, err := confirm.Run(); err != nil {
			return fmt.Errorf("password: %w", err)
		}

		return withAccounts(cmd.Context(), func(ctx context.Context, store *accounts.Store, auditStore *audit.Store) error {
			u, err := store.CreateUser(ctx, args[0], userName, password, role, accounts.StatusActive)
			if err != nil {
				return err
			}
			auditStore.Record(ctx, cliActor, audit.ActionUserCreated, audit.ScopeUser, u.ID, "Created "+u.Email+" as "+string(u.Role))
			fmt.Printf("Created %s (%s) with role %s\n", u.Email, u.ID, u.Role)
			return nil
		})
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAccounts(cmd.Context(), func(ctx context.Context, store *accounts.Store, _ *audit.Store) error {
			users, err := store.ListUsers(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMAIL\tNAME\tROLE\tSTATUS\tCREATED")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.Email, u.Name, u.Role, u.Status, u.CreatedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		})
	},
}

var userRoleCmd = &cobra.Command{
	Use:   "role <email> <role>",
	Short: "Change a user's role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := accounts.Role(args[1])
		if !role.Valid() {
			return fmt.Errorf("unknown role %q (viewer, editor or admin)", args[1])
		}
		return withAccounts(cmd.Context(), func(ctx context.Context, store *accounts.Store, auditStore *audit.Store) error {
			u, err := store.GetUserByEmail(ctx, args[0])
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("no user with email %s", args[0])
			}
			if err := store.SetRole(ctx, u.ID, role); err != nil {
				return err
			}
			auditStore.Record(ctx, cliActor, audit.ActionUserRoleChanged, audit.ScopeUser, u.ID, "Role set to "+string(role))
			fmt.Printf("%s is now %s\n", u.Email, role)
			return nil
		})
	},
}

// withAccounts opens the configured database for one user subcommand.
func withAccounts(ctx context.Context, fn func(context.Context, *accounts.Store, *audit.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	closer := setupLogging(cfg, "user")
	defer closer.Close()

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	return fn(ctx, accounts.NewStore(database), audit.NewStore(database))
}

func init() {
	userCreateCmd.Flags().StringVar(&userName, "name", "", "display name")
	userCreateCmd.Flags().StringVar(&userRole, "role", string(accounts.RoleAdmin), "role: viewer, editor or admin")
	userCmd.AddCommand(userCreateCmd, userListCmd, userRoleCmd)
	rootCmd.AddCommand(userCmd)
}
