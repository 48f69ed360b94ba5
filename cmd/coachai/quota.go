package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/config"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/usage"
)

func newQuotaCmd() *cobra.Command {
	var (
		configPath string
		userID     string
	)

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show request counts against the configured quota windows",
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

			ctx := context.Background()
			now := time.Now().UTC()
			dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

			daily, err := store.CountByUserSince(ctx, userID, dayStart)
			if err != nil {
				return err
			}
			monthly, err := store.CountByUserSince(ctx, userID, monthStart)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WINDOW\tUSED\tQUOTA\tREMAINING")
			fmt.Fprintf(w, "daily\t%d\t%d\t%d\n", daily, cfg.Quota.Daily, remaining(cfg.Quota.Daily, daily))
			fmt.Fprintf(w, "monthly\t%d\t%d\t%d\n", monthly, cfg.Quota.Monthly, remaining(cfg.Quota.Monthly, monthly))
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&userID, "user", "local", "user id")
	return cmd
}

func remaining(quota, used int) int {
	if r := quota - used; r > 0 {
		return r
	}
	return 0
}
