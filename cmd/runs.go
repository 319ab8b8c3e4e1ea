package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/company-profiler/internal/model"
	"github.com/sells-group/company-profiler/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded company runs",
	Long:  "Lists company runs from the configured store, newest first. Requires store.driver sqlite or postgres.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "runs")
		}
		if st == nil {
			return eris.New("runs: no store configured (set store.driver to sqlite or postgres)")
		}
		defer st.Close() //nolint:errcheck

		batch, _ := cmd.Flags().GetString("batch")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			BatchID: batch,
			Status:  model.RunStatus(status),
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs: list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func init() {
	runsCmd.Flags().String("batch", "", "filter by batch id")
	runsCmd.Flags().String("status", "", "filter by status (complete, degraded, failed)")
	runsCmd.Flags().Int("limit", 50, "max number of runs to display")
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tBATCH\tROW\tCOMPANY\tSTATUS\tCOST\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t---\t-------\t------\t----\t-------")

	for _, r := range runs {
		company := r.Company.Name
		if company == "" {
			company = r.Company.RawURL
		}
		if len(company) > 30 {
			company = company[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t$%.4f\t%s\n",
			truncateID(r.ID),
			truncateID(r.BatchID),
			r.Company.Row,
			company,
			r.Status,
			r.TotalCost,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
