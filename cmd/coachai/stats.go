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

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		userID     string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show request and token usage statistics",
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

			summaries, err := store.Summary(context.Background(), userID)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tCATEGORY\tREQUESTS\tTOKENS\tCOST\tSAVED")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t$%.4f\t$%.4f\n",
					s.UserID, s.Category, s.RequestCount, s.TotalTokens, s.TotalCost, s.TotalSaved)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&userID, "user", "", "filter by user id")
	return cmd
}
