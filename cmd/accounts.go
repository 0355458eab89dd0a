package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/teleflow/internal/config"
	"github.com/nextlevelbuilder/teleflow/internal/store"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage bot accounts",
	}
	cmd.AddCommand(accountsAddCmd())
	cmd.AddCommand(accountsListCmd())
	cmd.AddCommand(accountToggleCmd("enable", true))
	cmd.AddCommand(accountToggleCmd("disable", false))
	cmd.AddCommand(accountsRemoveCmd())
	return cmd
}

func accountsAddCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a bot account (or update its token)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(func(ctx context.Context, st *store.Stores, _ *config.Config) error {
				if token == "" {
					token = os.Getenv("TELEFLOW_BOT_TOKEN")
				}
				if token == "" {
					return fmt.Errorf("bot token required: pass --token or set TELEFLOW_BOT_TOKEN")
				}
				acct := store.Account{
					Name:    args[0],
					Token:   token,
					Enabled: true,
				}
				if err := st.Accounts.Upsert(ctx, acct); err != nil {
					return err
				}
				fmt.Printf("account %s registered\n", acct.Name)
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bot token (falls back to TELEFLOW_BOT_TOKEN)")
	return cmd
}

func accountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered accounts",
		RunE: withStores(func(ctx context.Context, st *store.Stores, _ *config.Config) error {
			accounts, err := st.Accounts.List(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTOKEN\tENABLED\tCREATED")
			for _, a := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\n",
					a.Name, maskToken(a.Token), a.Enabled, a.Created.Format(time.DateOnly))
			}
			return w.Flush()
		}),
	}
}

func accountToggleCmd(verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <name>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(func(ctx context.Context, st *store.Stores, _ *config.Config) error {
				if err := st.Accounts.SetEnabled(ctx, args[0], enabled); err != nil {
					return err
				}
				fmt.Printf("account %s %sd\n", args[0], verb)
				return nil
			})(cmd, args)
		},
	}
}

func accountsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(func(ctx context.Context, st *store.Stores, _ *config.Config) error {
				if err := st.Accounts.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("account %s removed\n", args[0])
				return nil
			})(cmd, args)
		},
	}
}

// maskToken keeps enough of the token to recognize which bot it is without
// exposing the secret in terminal output.
func maskToken(token string) string {
	if i := strings.IndexByte(token, ':'); i > 0 && i < len(token)-4 {
		return token[:i] + ":..." + token[len(token)-4:]
	}
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
