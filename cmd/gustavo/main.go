package main

import (
	"fmt"
	"os"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		// stdout is reserved for MCP traffic when serving
		fmt.Fprintf(os.Stderr, "gustavo: %v\n", err)
		os.Exit(1)
	}
}
