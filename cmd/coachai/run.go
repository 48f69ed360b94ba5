package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/config"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/engine"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/gateway"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/registry"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/resolver"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/usage"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		category   string
		query      string
		templateID string
		language   string
		batched    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one prompt request through the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}

			reg, err := registry.New(registry.FileSource{Dir: cfg.TemplateDir})
			if err != nil {
				return fmt.Errorf("load templates: %w", err)
			}

			store, err := usage.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("init usage store: %w", err)
			}
			defer func() { _ = store.Close() }()

			eng := engine.New(cfg, engine.Deps{
				Registry: reg,
				Provider: resolver.StaticProvider{},
				Gateway:  gateway.NewHTTP(cfg.Providers, cfg.Pricing),
				Usage:    store,
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			eng.Start(ctx)
			defer eng.Stop()

			res := eng.Execute(ctx, userID, category,
				map[string]any{"user_query": query},
				models.ExecuteOptions{TemplateID: templateID, Language: language, EnableBatching: batched},
			)
			if !res.Success {
				return fmt.Errorf("execute failed: %s", res.Error)
			}

			if res.FromCache {
				fmt.Println("(served from cache)")
			}
			if res.Response != "" {
				fmt.Println(res.Response)
				return nil
			}

			// Batched: wait for the asynchronous result, bounded by twice
			// the batch timeout.
			fmt.Printf("queued as %s, waiting for batch flush...\n", res.RequestID)
			deadline := time.After(2 * cfg.Batch.Timeout)
			for {
				select {
				case r := <-eng.Results():
					if r.RequestID != res.RequestID {
						continue
					}
					if r.Err != "" {
						return fmt.Errorf("batch failed: %s", r.Err)
					}
					fmt.Println(r.Response)
					return nil
				case <-deadline:
					return fmt.Errorf("timed out waiting for batch result")
				}
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&userID, "user", "local", "user id")
	cmd.Flags().StringVar(&category, "category", "general_chat", "prompt category")
	cmd.Flags().StringVarP(&query, "query", "q", "", "user query text")
	cmd.Flags().StringVar(&templateID, "template", "", "explicit template id")
	cmd.Flags().StringVar(&language, "language", "", "preferred template language")
	cmd.Flags().BoolVar(&batched, "batch", false, "use the cost-optimized batched path")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}
