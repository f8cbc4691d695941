package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/errtransform/internal/errors"
	errorreport "github.com/KirkDiggler/errtransform/internal/repositories/error_report"
)

func (a *app) newReportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Inspect stored error reports",
	}
	cmd.AddCommand(a.newReportsListCmd(), a.newReportsGetCmd())
	return cmd
}

func (a *app) newReportsListCmd() *cobra.Command {
	var (
		kind   string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, closeRepo, err := a.reportRepository()
			if err != nil {
				return err
			}
			defer closeRepo()

			out, err := repo.List(cmd.Context(), errorreport.ListInput{Kind: kind, Limit: limit})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out.Reports)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tREPORTED\tKIND\tGROUP\tACTION\tMESSAGE")
			for _, r := range out.Reports {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.ReportedAt.Format(time.RFC3339), r.Kind, r.Group, r.Action, r.Message)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only list reports of this kind")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of reports")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print reports as JSON")
	return cmd
}

func (a *app) newReportsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Print one report with its stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeRepo, err := a.reportRepository()
			if err != nil {
				return err
			}
			defer closeRepo()

			out, err := repo.Get(cmd.Context(), errorreport.GetInput{ID: args[0]})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out.Report)
		},
	}
}

func (a *app) reportRepository() (errorreport.Repository, func(), error) {
	if !a.cfg.Redis.Enabled() {
		return nil, nil, errors.InvalidArgument("no report store configured, set --redis-addr or ERRTRANSFORM_REDIS_ADDRS")
	}

	repo, client, err := a.openReportRepository()
	if err != nil {
		return nil, nil, err
	}
	return repo, func() { _ = client.Close() }, nil
}
