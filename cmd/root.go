package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/teleflow/internal/config"
	"github.com/nextlevelbuilder/teleflow/internal/store"
	"github.com/nextlevelbuilder/teleflow/internal/store/pg"
	"github.com/nextlevelbuilder/teleflow/internal/store/sqlite"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/teleflow/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "teleflow",
	Short: "Teleflow — Telegram channel relay",
	Long:  "Teleflow forwards messages between Telegram channels by configurable rules: filtering, text cleaning, replacement, and multi-destination delivery.",
	Run: func(cmd *cobra.Command, args []string) {
		runRelay()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $TELEFLOW_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(relayCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(accountsCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("teleflow %s\n", Version)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("TELEFLOW_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// openStores picks the storage backend from the loaded config.
func openStores(cfg *config.Config) (*store.Stores, error) {
	sc := store.StoreConfig{
		Mode:        cfg.Database.Mode,
		SQLitePath:  config.ExpandHome(cfg.Database.SQLitePath),
		PostgresDSN: cfg.Database.PostgresDSN,
	}
	if cfg.IsManagedMode() {
		return pg.NewPGStores(sc)
	}
	return sqlite.NewStores(sc)
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
