package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/geolm/pkg/geolm"
	"github.com/cognicore/geolm/pkg/geolm/config"
	"github.com/cognicore/geolm/pkg/geolm/stoplist"
)

var (
	stopwordsConfig    string
	stopwordsDFPercent float64
	stopwordsMinDocs   int64
	stopwordsSource    sourceFlags
)

var stopwordsCmd = &cobra.Command{
	Use:   "stopwords",
	Short: "Suggest stopwords from training document frequencies",
	Long:  "Prints a YAML stoplist (terms: [...]) of grams that appear in more than --df-percent of the training documents and are not stopwords yet.",
	RunE:  runStopwords,
}

func init() {
	defaults := stoplist.DefaultThresholds()
	stopwordsCmd.Flags().StringVar(&stopwordsConfig, "config", "", "YAML run configuration (defaults when empty)")
	stopwordsCmd.Flags().Float64Var(&stopwordsDFPercent, "df-percent", defaults.DFPercent, "document frequency threshold in percent")
	stopwordsCmd.Flags().Int64Var(&stopwordsMinDocs, "min-docs", defaults.MinDocs, "suggest nothing for smaller corpora")
	stopwordsSource.register(stopwordsCmd)
}

func runStopwords(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	comp, err := loadComponents(stopwordsConfig)
	if err != nil {
		return err
	}
	src, closeSrc, err := stopwordsSource.open(ctx)
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

	agg := run.Aggregator()
	stats := stoplist.CollectStats(agg, run.Table())
	candidates := comp.Stoplist.SuggestCandidates(stats, agg.NumDocuments(), stoplist.Thresholds{
		DFPercent: stopwordsDFPercent,
		MinDocs:   stopwordsMinDocs,
	})

	out := config.Terms{Terms: make([]string, len(candidates))}
	for i, c := range candidates {
		out.Terms[i] = c.Token
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode stoplist: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
