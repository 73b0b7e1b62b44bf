package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	store      string
	dsn        string
	sqlitePath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "auditctl",
		Short: "Inspect the supplydash audit log and outbox",
		Long: `auditctl reads the append-only audit log written by supplydash.

It can list entries from the postgres or sqlite store, report how many
outbox rows are waiting for the relay, and drain the outbox to Kafka once.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.store, "store", "postgres", "audit store kind: postgres or sqlite")
	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "postgres connection string (defaults to $DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite-path", "supplydash-audit.db", "sqlite database file")

	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newOutboxCmd(opts))
	return cmd
}
