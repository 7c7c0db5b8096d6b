// Package main provides abreport, a command line view of experiment results
// stored by the AgriConnect server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/findosh/agriconnect/internal/config"
	"github.com/findosh/agriconnect/internal/models"
	"github.com/findosh/agriconnect/internal/services/experiments"
	"github.com/findosh/agriconnect/internal/storage"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd(config.Load(), os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(cfg *config.Config, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "abreport",
		Short:         "Report on A/B experiments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	cmd.PersistentFlags().StringVar(&cfg.StoreDriver, "driver", cfg.StoreDriver, "Store driver (memory, sqlite, redis)")
	cmd.PersistentFlags().StringVar(&cfg.DatabaseURL, "database", cfg.DatabaseURL, "SQLite database path")
	cmd.PersistentFlags().StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address")
	cmd.PersistentFlags().StringVar(&cfg.ExperimentsFile, "experiments", cfg.ExperimentsFile, "Experiment catalog YAML")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List active experiments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), cfg, func(svc *experiments.Service) error {
				return printList(cmd.OutOrStdout(), svc.GetActiveTests(), time.Now())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "results <experiment-id>",
		Short: "Print per-variant results of an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), cfg, func(svc *experiments.Service) error {
				exp, ok := svc.Test(args[0])
				if !ok {
					return fmt.Errorf("unknown experiment %q", args[0])
				}
				return printResults(cmd.OutOrStdout(), exp, svc.GetTestResults(exp.ID))
			})
		},
	})

	return cmd
}

// withService opens the configured store and runs fn against a service
// loaded from it
func withService(ctx context.Context, cfg *config.Config, fn func(*experiments.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := storage.New(cfg.Store())
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	defer store.Close()

	svc := experiments.NewService(ctx, store, experiments.Options{})
	if cfg.ExperimentsFile != "" {
		if _, err := svc.LoadCatalog(cfg.ExperimentsFile); err != nil {
			return err
		}
	}
	return fn(svc)
}

func printList(out io.Writer, exps []models.Experiment, now time.Time) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tVARIANTS\tENDS")
	for _, exp := range exps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			exp.ID, exp.Name, exp.Status(now), len(exp.Variants), exp.EndDate.Format("2006-01-02"))
	}
	return tw.Flush()
}

func printResults(out io.Writer, exp models.Experiment, results models.ExperimentResults) error {
	fmt.Fprintf(out, "%s (%s)\n", exp.Name, exp.ID)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIANT\tUSERS\tEVENTS\tCONVERSION\tBREAKDOWN")
	for _, variant := range exp.Variants {
		vr := results.Variants[variant.ID]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s%%\t%s\n",
			variant.ID, vr.Users, vr.TotalEvents(), vr.ConversionRate.StringFixed(2), breakdown(vr.Events))
	}
	return tw.Flush()
}

func breakdown(events map[models.EventType]int) string {
	if len(events) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(events))
	for t, n := range events {
		parts = append(parts, fmt.Sprintf("%s=%d", t, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
