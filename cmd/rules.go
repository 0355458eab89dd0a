package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/teleflow/internal/config"
	"github.com/nextlevelbuilder/teleflow/internal/relay"
	"github.com/nextlevelbuilder/teleflow/internal/store"
	"github.com/nextlevelbuilder/teleflow/internal/telegram"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage forwarding rules",
	}
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesShowCmd())
	cmd.AddCommand(rulesEnableCmd())
	cmd.AddCommand(rulesDisableCmd())
	cmd.AddCommand(rulesDeleteCmd())
	cmd.AddCommand(rulesBackfillCmd())
	return cmd
}

func withStores(fn func(ctx context.Context, st *store.Stores, cfg *config.Config) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(resolveConfigPath())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		st, err := openStores(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		return fn(cmd.Context(), st, cfg)
	}
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all rules",
		RunE: withStores(func(ctx context.Context, st *store.Stores, _ *config.Config) error {
			rules, err := st.Rules.List(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tACCOUNT\tMODE\tSOURCES\tDESTINATIONS\tENABLED\tFORWARDED")
			for _, r := range rules {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%v\t%d\n",
					r.ID, r.Account, r.Mode,
					strings.Join(r.Sources, ","), strings.Join(r.Destinations, ","),
					r.Enabled, r.ForwardCount)
			}
			return w.Flush()
		}),
	}
}

func rulesAddCmd() *cobra.Command {
	var (
		account      string
		sources      []string
		destinations []string
		mode         string
		filtersJSON  string
		modifyJSON   string
		disabled     bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a forwarding rule",
		RunE: withStores(func(ctx context.Context, st *store.Stores, _ *config.Config) error {
			if account == "" || len(sources) == 0 || len(destinations) == 0 {
				return fmt.Errorf("--account, --source and --dest are required")
			}
			if _, err := st.Accounts.Get(ctx, account); err != nil {
				return fmt.Errorf("account %q: %w", account, err)
			}

			rule := relay.Rule{
				Account:      account,
				Sources:      sources,
				Destinations: destinations,
				Mode:         relay.ModeForward,
				Modify:       relay.DefaultModify(),
				Enabled:      !disabled,
			}
			if mode == string(relay.ModeCopy) {
				rule.Mode = relay.ModeCopy
			}
			if filtersJSON != "" {
				if err := json.Unmarshal([]byte(filtersJSON), &rule.Filters); err != nil {
					return fmt.Errorf("parse --filters: %w", err)
				}
			}
			if modifyJSON != "" {
				if err := json.Unmarshal([]byte(modifyJSON), &rule.Modify); err != nil {
					return fmt.Errorf("parse --modify: %w", err)
				}
			}
			rule.Modify.HeaderText = relay.ExpandNewlines(rule.Modify.HeaderText)
			rule.Modify.FooterText = relay.ExpandNewlines(rule.Modify.FooterText)

			if err := st.Rules.Create(ctx, &rule); err != nil {
				return err
			}
			fmt.Printf("rule %d created\n", rule.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&account, "account", "", "account name the rule runs under")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "source channel (@username or numeric id, repeatable)")
	cmd.Flags().StringSliceVar(&destinations, "dest", nil, "destination channel (repeatable)")
	cmd.Flags().StringVar(&mode, "mode", "forward", "delivery mode: forward or copy")
	cmd.Flags().StringVar(&filtersJSON, "filters", "", "filter settings as JSON")
	cmd.Flags().StringVar(&modifyJSON, "modify", "", "modify settings as JSON")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "create the rule disabled")
	return cmd
}

func rulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one rule in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id: %w", err)
			}
			return withStores(func(ctx context.Context, st *store.Stores, _ *config.Config) error {
				rule, err := st.Rules.Get(ctx, id)
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(rule, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			})(cmd, args)
		},
	}
}

func rulesEnableCmd() *cobra.Command {
	return ruleToggleCmd("enable", true)
}

func rulesDisableCmd() *cobra.Command {
	return ruleToggleCmd("disable", false)
}

func ruleToggleCmd(verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id: %w", err)
			}
			return withStores(func(ctx context.Context, st *store.Stores, _ *config.Config) error {
				if err := st.Rules.SetEnabled(ctx, id, enabled); err != nil {
					return err
				}
				fmt.Printf("rule %d %sd\n", id, verb)
				return nil
			})(cmd, args)
		},
	}
}

func rulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id: %w", err)
			}
			return withStores(func(ctx context.Context, st *store.Stores, _ *config.Config) error {
				if err := st.Rules.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Printf("rule %d deleted\n", id)
				return nil
			})(cmd, args)
		},
	}
}

// rulesBackfillCmd replays recent source history through a rule once. Needs
// the rule's account to come online, so it connects for the duration of the
// run.
func rulesBackfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill <id>",
		Short: "Replay recent source history through a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id: %w", err)
			}
			return withStores(func(ctx context.Context, st *store.Stores, cfg *config.Config) error {
				rule, err := st.Rules.Get(ctx, id)
				if err != nil {
					return err
				}
				if !rule.Modify.HistoryEnabled || rule.Modify.HistoryCount <= 0 {
					return fmt.Errorf("rule %d has no history settings enabled", id)
				}
				acct, err := st.Accounts.Get(ctx, rule.Account)
				if err != nil {
					return err
				}

				relayCfg := cfg.Snapshot().Relay
				client, err := telegram.New(telegram.Config{
					Account:       acct.Name,
					Token:         acct.Token,
					Proxy:         relayCfg.Proxy,
					DownloadDir:   config.ExpandHome(relayCfg.DownloadDir),
					MediaMaxBytes: relayCfg.MediaMaxBytes,
				}, slog.Default())
				if err != nil {
					return err
				}
				engine := relay.NewEngine(ctx, acct.Name, st.Rules, client, relay.Options{
					AlbumWindow: relayCfg.AlbumWindow(),
					RatePerMin:  relayCfg.RateLimitPerMin,
				})
				defer engine.Close()

				return engine.Backfill(ctx, rule)
			})(cmd, args)
		},
	}
}
