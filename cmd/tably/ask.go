package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tably-ai/tably/pkg/audit"
	cachesqlite "github.com/tably-ai/tably/pkg/cache/sqlite"
	"github.com/tably-ai/tably/pkg/config"
	"github.com/tably-ai/tably/pkg/exec"
	"github.com/tably-ai/tably/pkg/llm"
	"github.com/tably-ai/tably/pkg/models"
	"github.com/tably-ai/tably/pkg/pipeline"
	"github.com/tably-ai/tably/pkg/schema"
)

func newAskCmd() *cobra.Command {
	var (
		configPath    string
		history       []string
		clarification bool
		showTrace     bool
	)

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Run one assistant turn for a natural-language question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}

			logger, err := zap.NewProduction()
			if err != nil {
				logger = zap.NewNop()
			}
			defer func() { _ = logger.Sync() }()

			store, err := cachesqlite.New(cfg.CacheDBPath, cfg.Cache.MaxEntries, cfg.Cache.DiversitySize, logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			executor, err := exec.NewSQLite(cfg.DataDBPath, 0)
			if err != nil {
				return err
			}
			defer func() { _ = executor.Close() }()

			sp, err := schema.NewFromFile(cfg.SchemaPath)
			if err != nil {
				// No schema file yet: SQL generation still runs, just
				// without grounding context.
				sp = schema.NewStatic("")
			}

			auditor, err := audit.New(cfg.Audit.DBPath, cfg.Audit.RetentionDays)
			if err != nil {
				return err
			}
			defer func() { _ = auditor.Close() }()

			provider := llm.NewProvider(cfg.Provider.APIKey, cfg.Provider.BaseURL, cfg.Provider.Model, cfg.Provider.Timeout)
			resolver := pipeline.NewResolver(store, provider, cfg.Provider.Model, logger)
			orch := pipeline.New(resolver, executor, sp, auditor, logger)

			req := models.TurnRequest{
				Message:                args[0],
				History:                parseHistory(history),
				LastAIWasClarification: clarification,
			}

			resp, err := orch.RunTurn(context.Background(), req)
			if err != nil {
				return err
			}

			printResponse(resp, showTrace)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "tably.yaml", "path to config file")
	cmd.Flags().StringArrayVar(&history, "history", nil, "prior turn as role:text (repeatable, in order)")
	cmd.Flags().BoolVar(&clarification, "clarification", false, "the assistant's last output was a clarification question")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "print the per-stage cache/llm trace")
	return cmd
}

func parseHistory(raw []string) []models.ChatMessage {
	var msgs []models.ChatMessage
	for _, h := range raw {
		role, content, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		msgs = append(msgs, models.ChatMessage{Role: strings.TrimSpace(role), Content: strings.TrimSpace(content)})
	}
	return msgs
}

func printResponse(resp models.TurnResponse, showTrace bool) {
	for i, part := range resp.Parts {
		if len(resp.Parts) > 1 {
			fmt.Printf("[%d/%d]\n", i+1, len(resp.Parts))
		}
		printPart(part)
	}

	if resp.Status == models.TurnIncomplete && resp.PendingClarification != "" {
		fmt.Printf("\n(waiting for your answer: %s)\n", resp.PendingClarification)
	}
	if resp.PreviousQuestionDiscarded {
		fmt.Println("(previous question was set aside)")
	}

	if showTrace {
		fmt.Println("\nTrace:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STEP\tSOURCE\tOUTPUT")
		for _, e := range resp.Trace {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Step, e.Source, e.Output)
		}
		_ = w.Flush()
	}
}

func printPart(part models.ResultPart) {
	switch part.Kind {
	case models.PartTable:
		var tbl models.Table
		if err := json.Unmarshal(part.Content, &tbl); err != nil {
			fmt.Println(string(part.Content))
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(tbl.Columns, "\t"))
		for _, row := range tbl.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = fmt.Sprintf("%v", v)
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
		_ = w.Flush()
		if part.Explanation != "" {
			fmt.Println(part.Explanation)
		}
		if part.SQLQuery != "" {
			fmt.Printf("-- %s\n", part.SQLQuery)
		}
	case models.PartChart:
		fmt.Println(string(part.Content))
		if part.Explanation != "" {
			fmt.Println(part.Explanation)
		}
	default:
		fmt.Println(part.Text())
	}
}
