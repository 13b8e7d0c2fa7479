package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cognicore/geolm/pkg/geolm/config"
	"github.com/cognicore/geolm/pkg/geolm/ingest"
)

var (
	countsHTML     bool
	countsStoplist string
)

var countsCmd = &cobra.Command{
	Use:   "counts FILE",
	Short: "Print the count string of a text or HTML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCounts,
}

func init() {
	countsCmd.Flags().BoolVar(&countsHTML, "html", false, "extract visible text from HTML first")
	countsCmd.Flags().StringVar(&countsStoplist, "stoplist", "", "YAML stoplist (terms: [...]) applied while tokenizing")
}

func runCounts(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	var text string
	if countsHTML {
		if text, err = ingest.ExtractText(f); err != nil {
			return err
		}
	} else {
		data, err := io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		text = string(data)
	}

	var stops []string
	if countsStoplist != "" {
		terms, err := config.LoadTerms(countsStoplist)
		if err != nil {
			return fmt.Errorf("load stoplist: %w", err)
		}
		stops = terms.Terms
	}

	fmt.Fprintln(cmd.OutOrStdout(), ingest.NewTokenizer(stops).TextCountString(text))
	return nil
}
