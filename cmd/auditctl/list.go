package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"supplydash/internal/platform/config"
	"supplydash/internal/platform/postgres"
	"supplydash/pkg/platform/audit"
	auditpostgres "supplydash/pkg/platform/audit/store/postgres"
	auditsqlite "supplydash/pkg/platform/audit/store/sqlite"
)

type listOptions struct {
	limit   int
	offset  int
	actions []string
}

// entryLister is the read side shared by both stores.
type entryLister interface {
	List(ctx context.Context, limit, offset int) ([]audit.Entry, error)
}

// actionLister is implemented by stores that can filter by action.
type actionLister interface {
	ListByActions(ctx context.Context, actions []string, limit, offset int) ([]audit.Entry, error)
}

func newListCmd(root *rootOptions) *cobra.Command {
	opts := &listOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print audit entries as JSON, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			lister, closeFn, err := openLister(ctx, root)
			if err != nil {
				return err
			}
			defer closeFn()
			return runList(ctx, cmd.OutOrStdout(), lister, opts)
		},
	}
	cmd.Flags().IntVar(&opts.limit, "limit", audit.DefaultPageSize, "maximum entries to print")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "entries to skip")
	cmd.Flags().StringSliceVar(&opts.actions, "action", nil, "only entries with these actions (postgres only)")
	return cmd
}

func runList(ctx context.Context, out io.Writer, lister entryLister, opts *listOptions) error {
	limit, offset := audit.NormalizePage(opts.limit, opts.offset)

	var (
		entries []audit.Entry
		err     error
	)
	if len(opts.actions) > 0 {
		filter, ok := lister.(actionLister)
		if !ok {
			return fmt.Errorf("--action is not supported by this store")
		}
		entries, err = filter.ListByActions(ctx, opts.actions, limit, offset)
	} else {
		entries, err = lister.List(ctx, limit, offset)
	}
	if err != nil {
		return fmt.Errorf("list audit entries: %w", err)
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func openLister(ctx context.Context, root *rootOptions) (entryLister, func(), error) {
	switch root.store {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, resolveDSN(root))
		if err != nil {
			return nil, nil, err
		}
		return auditpostgres.New(db.DB), func() { _ = db.Close() }, nil
	case config.StoreSQLite:
		store, err := auditsqlite.Open(ctx, root.sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store %q", root.store)
	}
}

func resolveDSN(root *rootOptions) string {
	if root.dsn != "" {
		return root.dsn
	}
	return os.Getenv("DATABASE_URL")
}
