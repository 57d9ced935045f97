package cmd

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coverwire/harvester/internal/app"
	"github.com/coverwire/harvester/internal/news"
	"github.com/coverwire/harvester/internal/source"
)

func newIngestCmd() *cobra.Command {
	var (
		sourceName string
		query      string
		category   string
		language   string
		limit      int
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion batch and print the summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			params := source.Params{
				Query:    query,
				Category: category,
				Language: language,
				Limit:    limit,
			}

			var candidates []news.Candidate
			for _, adapter := range a.Adapters {
				if sourceName != "" && adapter.Name() != sourceName {
					continue
				}
				cands, meta, err := adapter.FetchCandidates(ctx, params)
				if err != nil {
					a.Logger.Warn("source adapter failed",
						zap.String("adapter", adapter.Name()), zap.Error(err))
					continue
				}
				a.Logger.Info("candidates fetched",
					zap.String("adapter", adapter.Name()),
					zap.Int("count", len(cands)),
					zap.Any("meta", meta))
				candidates = append(candidates, cands...)
			}
			if sourceName != "" && len(candidates) == 0 {
				a.Logger.Warn("no candidates", zap.String("source", sourceName))
			}

			summary := a.Orchestrator.Run(ctx, candidates, force)

			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceName, "source", "", "only pull from this adapter (thenewsapi, gnews, nytimes, rss, googlenews)")
	cmd.Flags().StringVar(&query, "query", "", "search query for API adapters")
	cmd.Flags().StringVar(&category, "category", "", "category or section filter")
	cmd.Flags().StringVar(&language, "lang", "", "language code")
	cmd.Flags().IntVar(&limit, "limit", 0, "max candidates per adapter")
	cmd.Flags().BoolVar(&force, "force", false, "re-extract even when content is cached")
	return cmd
}
