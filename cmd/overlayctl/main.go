// overlayctl - overlay input-collection orchestrator
package main

import (
	"os"

	"overlayctl/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}
