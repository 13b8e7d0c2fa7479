// geolm builds smoothed language models from count strings and ranks test
// documents against training documents.
package main

import (
	"os"

	"github.com/cognicore/geolm/cmd/geolm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
