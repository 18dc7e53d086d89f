package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/featuregen/internal/report"
	"github.com/yourorg/featuregen/pkg/types"
)

func newRunCmd(g *globals) *cobra.Command {
	var featurePath, reportDir string
	var asJSON bool
	var req types.ExecRequest
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a feature file, or the default checks, against an endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if featurePath != "" {
				text, err := readInput(cmd, featurePath)
				if err != nil {
					return err
				}
				req.GeneratedTestCases = []types.TestCaseInput{types.RawText(text)}
			}
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.engine().Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if reportDir != "" {
				artifact, err := report.RenderWith(summary, req, time.Now(), a.logger)
				if err != nil {
					return err
				}
				path := filepath.Join(reportDir, artifact.Filename)
				if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "report written to", path)
			}
			if asJSON {
				return printJSON(cmd, summary)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCENARIO\tSTATUS\tCODE\tMS")
			for _, r := range summary.TestResults {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", r.Scenario, r.Status, r.StatusCode, r.DurationMs)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			s := summary.Summary
			fmt.Fprintf(cmd.OutOrStdout(), "\nrun %s: %d total, %d passed, %d failed (%s)\n", summary.RunID, s.Total, s.Passed, s.Failed, s.SuccessRate)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.APIEndpoint, "endpoint", "", "target API endpoint")
	cmd.Flags().StringVar(&req.Method, "method", "GET", "HTTP method")
	cmd.Flags().StringVar(&req.Token, "token", "", "bearer token")
	cmd.Flags().StringVar(&req.Username, "username", "", "basic auth user")
	cmd.Flags().StringVar(&req.Password, "password", "", "basic auth password")
	cmd.Flags().StringVar(&req.Body, "body", "", "request body for POST, PUT and PATCH")
	cmd.Flags().StringVar(&req.ResourceID, "resource-id", "", "resource id appended for DELETE")
	cmd.Flags().StringVar(&req.AcceptHeader, "accept", "", "Accept header")
	cmd.Flags().StringVarP(&featurePath, "feature", "f", "", "feature file to execute, - for stdin")
	cmd.Flags().StringVar(&reportDir, "report-dir", "", "write the spreadsheet report into this directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full results summary as JSON")
	_ = cmd.MarkFlagRequired("endpoint")
	return cmd
}

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe the configured model tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd, a.capabilities(cmd.Context()).Report())
		},
	}
}

func newHistoryCmd(g *globals) *cobra.Command {
	var limit int
	var runs bool
	history := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored generations and runs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recent generations, or runs with --runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			defer a.Close()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if runs {
				recs, err := a.store.ListRuns(limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "ID\tCREATED\tMETHOD\tENDPOINT\tPASSED\tTOTAL")
				for _, r := range recs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", r.ID, r.CreatedAt.Format(time.DateTime), r.Method, r.Endpoint, r.Passed, r.Total)
				}
				return tw.Flush()
			}
			recs, err := a.store.ListGenerations(limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "ID\tCREATED\tOPERATION\tTIER\tVALID")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", r.ID, r.CreatedAt.Format(time.DateTime), r.Operation, r.Tier, r.Valid)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum records")
	list.Flags().BoolVar(&runs, "runs", false, "list runs instead of generations")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a generation's feature text, or a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			defer a.Close()
			if runs {
				rec, err := a.store.GetRun(args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, rec)
			}
			rec, err := a.store.GetGeneration(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), rec.Output)
			return nil
		},
	}
	show.Flags().BoolVar(&runs, "runs", false, "look up a run id")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.store.DeleteGeneration(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		},
	}

	history.AddCommand(list, show, del)
	return history
}
