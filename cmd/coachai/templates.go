package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/config"
	"github.com/sid0791/Health-AI-V1-sub003/pkg/registry"
)

func newTemplatesCmd() *cobra.Command {
	var (
		configPath string
		category   string
	)

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List registered prompt templates",
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

			templates := reg.All()
			if category != "" {
				templates = reg.ByCategory(category)
			}
			if len(templates) == 0 {
				fmt.Println("No templates found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCATEGORY\tLANGUAGE\tVARIABLES\tCOST-OPTIMIZED")
			for _, t := range templates {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\n", t.ID, t.Category, t.Language, len(t.Variables), t.CostOptimized)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	return cmd
}
