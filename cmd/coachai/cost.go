package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/config"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/usage"
)

func newCostCmd() *cobra.Command {
	var (
		configPath string
		userID     string
	)

	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Show per-user cost and savings by optimization path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}

			store, err := usage.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			m, err := store.CostMetrics(context.Background(), userID)
			if err != nil {
				return err
			}
			if m.RequestCount == 0 {
				fmt.Println("No cost data found for this user.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tREQUESTS\tSAVED")
			fmt.Fprintf(w, "direct\t%d\t-\n", m.DirectCount)
			fmt.Fprintf(w, "cache\t%d\t$%.4f\n", m.CacheHits, m.CacheSaved)
			fmt.Fprintf(w, "dedup\t%d\t$%.4f\n", m.DedupedCount, m.DedupSaved)
			fmt.Fprintf(w, "batch\t%d\t$%.4f\n", m.BatchedCount, m.BatchSaved)
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Printf("\nTotal: %d requests, %d tokens, $%.4f spent, $%.4f saved\n",
				m.RequestCount, m.TotalTokens, m.TotalCost, m.TotalSaved)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&userID, "user", "local", "user id")
	return cmd
}
