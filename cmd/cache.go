package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/company-profiler/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the page cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cached pages older than the cache TTL",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "cache prune")
		}
		if st == nil {
			return eris.New("cache prune: no store configured (set store.driver to sqlite or postgres)")
		}
		defer st.Close() //nolint:errcheck

		ttl, _ := cmd.Flags().GetDuration("older-than")
		if ttl <= 0 {
			ttl = cfg.Store.CacheTTL()
		}
		cutoff := time.Now().Add(-ttl)

		n, err := st.DeleteExpiredPages(ctx, cutoff)
		if err != nil {
			return eris.Wrap(err, "cache prune")
		}
		zap.L().Info("cache: pruned pages", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d cached pages fetched before %s\n", n, cutoff.Format(time.RFC3339))
		return nil
	},
}

func init() {
	cachePruneCmd.Flags().Duration("older-than", 0, "override the configured cache TTL (e.g. 72h)")
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}
