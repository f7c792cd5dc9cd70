// Package main provides the entry point for the JD analyzer CLI and API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jd_agent",
	Short: "Job description analyzer",
	Long:  "Analyzes job descriptions: extracts required skills, matches them against the shared skill catalog, and assembles interview question lists per skill, reusing prior analyses where possible.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
