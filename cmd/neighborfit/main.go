// Package main provides the neighborfit command: the web server and a
// one-shot matcher for preference files.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/denisok6893-rgb/neighborfit/internal/domain"
	"github.com/denisok6893-rgb/neighborfit/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:           "neighborfit",
	Short:         "Neighborhood matching near LPU",
	Long:          "NeighborFit ranks neighborhoods against a user's lifestyle preferences and serves the questionnaire and results pages.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadCatalog reads the catalog at path, or the built-in one when path is empty.
func loadCatalog(path string) ([]domain.NeighborhoodCandidate, error) {
	if path == "" {
		return storage.DefaultCatalog()
	}
	return storage.LoadCatalogFromFile(path)
}
