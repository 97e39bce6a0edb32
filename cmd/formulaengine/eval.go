package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cellwright/formulaengine"
	"github.com/spf13/cobra"
)

var evalCmd = &cobra.Command{
	Use:   "eval [sheet!cell ...]",
	Short: "Evaluate cells in a workbook and print their values as JSON",
	Long: `eval loads the configured --workbook snapshot, evaluates every
sheet!cell reference given as an argument, and prints a JSON object mapping
each reference to its evaluated value.

Example:
  formulaengine eval --workbook budget.json "Sheet1!A1" "Sheet1!B10"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine()
	if err != nil {
		return err
	}

	results := make(map[string]any, len(args))
	for _, ref := range args {
		sheet, key, err := splitCellRef(ref)
		if err != nil {
			return err
		}
		value, err := engine.GetCellValue(sheet, key)
		if err != nil {
			return fmt.Errorf("evaluate %q: %w", ref, err)
		}
		results[ref] = formulaengine.EncodeCellValue(value)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// splitCellRef splits "Sheet1!A1" into its sheet and cell components.
func splitCellRef(ref string) (sheet, key string, err error) {
	idx := strings.LastIndex(ref, "!")
	if idx < 0 {
		return "", "", fmt.Errorf("cell reference %q must be of the form sheet!cell", ref)
	}
	return ref[:idx], ref[idx+1:], nil
}
