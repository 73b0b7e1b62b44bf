package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"supplydash/internal/platform/postgres"
	"supplydash/pkg/platform/audit/outbox"
)

func newOutboxCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drain the audit outbox",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "pending",
		Short: "Print the number of unpublished outbox rows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := postgres.Open(ctx, resolveDSN(root))
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := outbox.NewPostgresSource(db.DB).Pending(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	})

	var (
		brokers []string
		prefix  string
	)
	drain := &cobra.Command{
		Use:   "drain",
		Short: "Publish every pending outbox row to Kafka and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := postgres.Open(ctx, resolveDSN(root))
			if err != nil {
				return err
			}
			defer db.Close()

			client, err := outbox.NewKafkaClient(brokers, "auditctl")
			if err != nil {
				return err
			}
			defer client.Close()

			log := slog.New(slog.NewTextHandler(os.Stderr, nil))
			relay := outbox.NewRelay(outbox.NewPostgresSource(db.DB), outbox.NewKafkaProducer(client),
				outbox.Config{TopicPrefix: prefix}, outbox.WithLogger(log))
			n, err := relay.Drain(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d outbox rows\n", n)
			return nil
		},
	}
	drain.Flags().StringSliceVar(&brokers, "brokers", []string{"localhost:9092"}, "kafka seed brokers")
	drain.Flags().StringVar(&prefix, "topic-prefix", "supplydash.audit", "topic prefix")
	cmd.AddCommand(drain)
	return cmd
}
