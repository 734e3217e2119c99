package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// diagnoseCmd represents the diagnose command
var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <symbol>",
	Short: "Deep dive one symbol across six dimensions",
	Long: `Runs the single-symbol diagnosis: six scored dimensions, a sized
recommendation and an AI assessment.

Example:
  go run ./cmd/alpha diagnose 600519
  go run ./cmd/alpha diagnose 600519 --quick`,
	Args: cobra.ExactArgs(1),
	RunE: runDiagnose,
}

var diagnoseQuick bool

func init() {
	rootCmd.AddCommand(diagnoseCmd)

	diagnoseCmd.Flags().BoolVar(&diagnoseQuick, "quick", false, "skip AI reasoning, rule engine only")
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.engine.Diagnose(context.Background(), args[0], !diagnoseQuick)
	if err != nil {
		return fmt.Errorf("diagnose %s: %w", args[0], err)
	}

	fmt.Printf("%s %s  overall %.1f  call: %s\n\n",
		result.Symbol, result.Name, result.OverallScore, result.Recommendation.Signal)
	for _, d := range result.Dimensions {
		fmt.Printf("  %-14s %6.1f  %s\n", d.Name, d.Score, d.Comment)
	}
	fmt.Println()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Recommendation)
}
