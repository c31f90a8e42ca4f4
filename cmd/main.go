package main

import (
	"os"

	"github.com/veridoc/keygraph/cmd/keygraph"
)

func main() {
	if err := keygraph.Execute(); err != nil {
		os.Exit(1)
	}
}
