package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cachesqlite "github.com/tably-ai/tably/pkg/cache/sqlite"
	"github.com/tably-ai/tably/pkg/config"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	openStore := func() (*cachesqlite.Store, error) {
		cfg, err := config.LoadOrDefault(configPath)
		if err != nil {
			return nil, err
		}
		return cachesqlite.New(cfg.CacheDBPath, cfg.Cache.MaxEntries, cfg.Cache.DiversitySize, zap.NewNop())
	}

	var listLimit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cache entries, most recently used first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.ListEntries(listLimit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("Cache is empty.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSCOPE\tCREATED\tLAST USED\tBAD")
			for _, e := range entries {
				lastUsed := "-"
				if !e.LastUsedAt.IsZero() {
					lastUsed = e.LastUsedAt.Format("2006-01-02T15:04:05")
				}
				bad := ""
				if e.IsIncorrect {
					bad = "x"
				}
				fmt.Fprintf(w, "%.16s…\t%s\t%s\t%s\t%s\n",
					e.KeyHash, e.Scope, e.CreatedAt.Format("2006-01-02T15:04:05"), lastUsed, bad)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum entries to list")

	var clearScope string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Clear(clearScope); err != nil {
				return err
			}
			if clearScope == "" {
				fmt.Println("All cache entries cleared.")
			} else {
				fmt.Printf("Cache entries for scope %q cleared.\n", clearScope)
			}
			return nil
		},
	}
	clearCmd.Flags().StringVar(&clearScope, "scope", "", "only clear entries for one scope")

	var markCorrect bool
	markCmd := &cobra.Command{
		Use:   "mark [key-hash]",
		Short: "Flag a cached value as incorrect (or correct again)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.MarkIncorrect(args[0], !markCorrect); err != nil {
				return err
			}
			if markCorrect {
				fmt.Println("Entry unflagged.")
			} else {
				fmt.Println("Entry flagged as incorrect.")
			}
			return nil
		},
	}
	markCmd.Flags().BoolVar(&markCorrect, "correct", false, "remove the incorrect flag instead of setting it")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("Entries: %d\nHits:    %d\nMisses:  %d\n", stats.Entries, stats.Hits, stats.Misses)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tably.yaml", "path to config file")
	cmd.AddCommand(listCmd, clearCmd, markCmd, statsCmd)
	return cmd
}
