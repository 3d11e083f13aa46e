package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraforge/internal/compliance"
)

func createScoreCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "score <abi.json|artifact.json>",
		Short: "Score an ABI for RWA compliance features",
		Long: `Score a contract ABI for real-world-asset compliance features such as
ERC-3643 and ERC-1400 functions, oracle hooks and transfer controls.

Accepts a bare ABI array or a compiler artifact with an "abi" field
(for example the output of 'contraforge compile --out'). Runs locally.

EXAMPLES:
  contraforge score out/Token.json
  contraforge score abi.json --json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.OutOrStdout(), args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func runScore(w io.Writer, path string, asJSON bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading ABI: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("%s is not valid JSON", path)
	}

	report := compliance.ScoreJSON(data)

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if report.Compliant {
		okColor.Fprintf(w, "✓ Compliant (%s)\n", report.Standard)
	} else {
		warnColor.Fprintln(w, "✗ Not compliant")
	}
	fmt.Fprintf(w, "  Confidence: %.0f%%\n", report.Confidence*100)
	if len(report.DetectedFeatures) > 0 {
		fmt.Fprintln(w, "  Detected features:")
		for _, f := range report.DetectedFeatures {
			fmt.Fprintf(w, "    - %s\n", f)
		}
	}
	return nil
}
