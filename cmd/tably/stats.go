package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tably-ai/tably/pkg/audit"
	"github.com/tably-ai/tably/pkg/config"
	"github.com/tably-ai/tably/pkg/models"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		recent     int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show interaction log statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}

			logger, err := audit.New(cfg.Audit.DBPath, cfg.Audit.RetentionDays)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Close() }()

			ctx := context.Background()

			if recent > 0 {
				entries, err := logger.Query(ctx, models.InteractionQueryOpts{Limit: recent})
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Println("No interactions recorded.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tSTATUS\tINTENT\tPROMPT")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						e.CreatedAt.Format("2006-01-02T15:04:05"), e.Status, e.Intent, e.Prompt)
				}
				return w.Flush()
			}

			stats, err := logger.Stats(ctx)
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("No interactions recorded.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DAY\tSTATUS\tTURNS")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%s\t%d\n", s.Day, s.Status, s.Count)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "tably.yaml", "path to config file")
	cmd.Flags().IntVar(&recent, "recent", 0, "list the N most recent turns instead of aggregates")
	return cmd
}
