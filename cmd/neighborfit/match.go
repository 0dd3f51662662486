package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/denisok6893-rgb/neighborfit/internal/domain"
	"github.com/denisok6893-rgb/neighborfit/internal/matching"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank neighborhoods for a preference record",
	Long:  "Reads a preference record (the flat object, or one wrapped under \"userPreferences\") and prints the ranked neighborhoods.",
	RunE:  runMatch,
}

var (
	matchPrefs   string
	matchCatalog string
	matchJSON    bool
)

func init() {
	matchCmd.Flags().StringVarP(&matchPrefs, "prefs", "p", "", "Path to the preference JSON file, or - for stdin (required)")
	matchCmd.Flags().StringVar(&matchCatalog, "catalog", "", "Path to a catalog YAML file (default: built-in catalog)")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "Print the ranking as JSON")

	if err := matchCmd.MarkFlagRequired("prefs"); err != nil {
		panic(fmt.Sprintf("failed to mark prefs flag as required: %v", err))
	}

	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, _ []string) error {
	var (
		data []byte
		err  error
	)
	if matchPrefs == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(matchPrefs)
	}
	if err != nil {
		return fmt.Errorf("failed to read preferences: %w", err)
	}

	prefs, err := domain.DecodePreferences(unwrapHandoff(data))
	if err != nil {
		return err
	}

	catalog, err := loadCatalog(matchCatalog)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	matches, err := matching.Score(prefs, catalog)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if matchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}
	return writeTable(out, matches)
}

// unwrapHandoff returns the record under "userPreferences" when data is the
// wrapped form, and data unchanged otherwise.
func unwrapHandoff(data []byte) []byte {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return data
	}
	if inner, ok := envelope[domain.PreferencesKey]; ok {
		return bytes.TrimSpace(inner)
	}
	return data
}

func writeTable(w io.Writer, matches []domain.ScoredMatch) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNEIGHBORHOOD\tCITY\tSCORE\tREASONS")
	for i, m := range matches {
		reasons := "-"
		if len(m.MatchReasons) > 0 {
			reasons = strings.Join(m.MatchReasons, "; ")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", i+1, m.Name, m.City, m.OverallScore, reasons)
	}
	return tw.Flush()
}
