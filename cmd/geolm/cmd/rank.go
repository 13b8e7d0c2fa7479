package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/geolm/pkg/geolm"
	"github.com/cognicore/geolm/pkg/geolm/rank"
)

var (
	rankConfig  string
	rankMetric  string
	rankTop     int
	rankPartial bool
	rankWorkers int
	rankExplain int
	rankSource  sourceFlags
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank training documents against every test document",
	Long:  "Builds a model per record, finishes global statistics over the training split and prints one JSON ranking per test or dev record.",
	RunE:  runRank,
}

func init() {
	rankCmd.Flags().StringVar(&rankConfig, "config", "", "YAML run configuration (defaults when empty)")
	rankCmd.Flags().StringVar(&rankMetric, "metric", string(rank.MetricKL), "kl | cosine | cosine-unsmoothed | naive-bayes")
	rankCmd.Flags().IntVar(&rankTop, "top", 5, "results kept per document (0 for all)")
	rankCmd.Flags().BoolVar(&rankPartial, "partial", false, "only sum over the test document's grams")
	rankCmd.Flags().IntVar(&rankWorkers, "workers", 0, "concurrent scorers (0 for GOMAXPROCS)")
	rankCmd.Flags().IntVar(&rankExplain, "explain", 0, "contributing grams listed for the best result")
	rankSource.register(rankCmd)
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	metric, err := rank.ParseMetric(rankMetric)
	if err != nil {
		return err
	}
	comp, err := loadComponents(rankConfig)
	if err != nil {
		return err
	}

	src, closeSrc, err := rankSource.open(ctx)
	if err != nil {
		return err
	}
	defer closeSrc()

	run := geolm.New(geolm.OptionsFromConfig(comp, logger))
	if _, _, err := run.Load(ctx, src); err != nil {
		return err
	}
	if err := run.Finish(); err != nil {
		return err
	}

	ranker := &rank.Ranker{
		Metric:  metric,
		KLMode:  comp.KLMode,
		Partial: rankPartial,
		Workers: rankWorkers,
		Explain: rankExplain,
		Logger:  logger,
	}
	rankings, err := run.RankTest(ctx, ranker, rankTop)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, rk := range rankings {
		if err := enc.Encode(rk); err != nil {
			return fmt.Errorf("write ranking: %w", err)
		}
	}

	if acc, n := geolm.Accuracy(rankings); n > 0 {
		logger.Info("evaluation",
			zap.Int("labelled", n),
			zap.Float64("accuracy", acc))
	}
	return nil
}
