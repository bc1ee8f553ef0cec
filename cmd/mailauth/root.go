package main

import (
	"github.com/spf13/cobra"
)

// configFile is the YAML file named by --config.
var configFile string

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mailauth",
		Short: "Account registration and session service for the mail platform",
		Long: `mailauth serves registration, password login, federated login and
logout for mailbox users, backed by PostgreSQL and Redis.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	cmd.PersistentFlags().String("log.level", "info", "log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log.format", "json", "log format: json or text")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
