package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantumalpha/backend/internal/engine"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan over the universe and print the ranking",
	Long: `Runs one full scan pass: fetch, signal computation, composite
scoring, position sizing and reasoning; prints the ranked candidates.

Example:
  go run ./cmd/alpha scan
  go run ./cmd/alpha scan --symbols 600519,000001,300750
  go run ./cmd/alpha scan --quick --json`,
	RunE: runScan,
}

var (
	scanSymbols []string
	scanQuick   bool
	scanJSON    bool
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringSliceVar(&scanSymbols, "symbols", nil, "symbols to scan (default: SCAN_UNIVERSE)")
	scanCmd.Flags().BoolVar(&scanQuick, "quick", false, "skip AI reasoning, rule engine only")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print the raw JSON result")
}

func runScan(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	mode := engine.ModeFull
	if scanQuick {
		mode = engine.ModeQuick
	}

	result, err := p.engine.Scan(context.Background(), scanSymbols, mode)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if scanJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("Scanned %d candidates at %s", len(result.Candidates),
		result.GeneratedAt.Format("2006-01-02 15:04:05"))
	if result.Degraded {
		fmt.Print("  [degraded: rule-engine fallback used]")
	}
	fmt.Println()
	fmt.Println()
	fmt.Printf("%-4s %-8s %-10s %-6s %7s %10s %8s  %s\n",
		"RANK", "SYMBOL", "NAME", "CALL", "SCORE", "BUY", "SHARES", "SUMMARY")
	for i, rec := range result.Candidates {
		fmt.Printf("%-4d %-8s %-10s %-6s %7.1f %10.2f %8d  %s\n",
			i+1, rec.Symbol, rec.Name, rec.Signal, rec.Score,
			rec.BuyPrice, rec.Shares, rec.Narrative)
	}
	return nil
}
