package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraforge/pkg/client"
)

type testOptions struct {
	sourcePath      string
	testPath        string
	contract        string
	compilerVersion string
}

func createTestCmd() *cobra.Command {
	var opts testOptions

	cmd := &cobra.Command{
		Use:   "test <file.sol> --test <file.t.sol>",
		Short: "Run a contract's Foundry tests",
		Long: `Compile a contract together with its Foundry test file on the server and run the suite.

The test file imports the contract as "../src/<Contract>.sol".

EXAMPLES:
  contraforge test src/Token.sol --test test/Token.t.sol
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.sourcePath = args[0]
			opts.compilerVersion = getCompilerVersion(opts.compilerVersion)
			return runTest(cmd.Context(), cmd.OutOrStdout(), newClient(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.testPath, "test", "", "Foundry test file (required)")
	cmd.Flags().StringVar(&opts.contract, "contract", "", "contract name (default: file name)")
	cmd.Flags().StringVar(&opts.compilerVersion, "compiler-version", "", "solc version (default from config or server)")
	_ = cmd.MarkFlagRequired("test")

	return cmd
}

func runTest(ctx context.Context, w io.Writer, c *client.Client, opts testOptions) error {
	source, err := os.ReadFile(opts.sourcePath)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	testCode, err := os.ReadFile(opts.testPath)
	if err != nil {
		return fmt.Errorf("reading test file: %w", err)
	}
	name := opts.contract
	if name == "" {
		name = contractNameFromPath(opts.sourcePath)
	}

	fmt.Fprintf(w, "🧪 Testing %s with %s\n", name, opts.testPath)

	outcome, err := c.Test(ctx, client.TestRequest{
		SourceCode:      string(source),
		ContractName:    name,
		TestCode:        string(testCode),
		CompilerVersion: opts.compilerVersion,
	})
	if err != nil {
		return fmt.Errorf("test request failed: %w", err)
	}

	if outcome.Error != "" {
		failColor.Fprintln(w, "✗ Test run failed")
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.TrimRight(outcome.Error, "\n"))
		return fmt.Errorf("test run failed")
	}

	fmt.Fprintln(w)
	for _, r := range outcome.Results {
		if r.Status == "passed" {
			okColor.Fprint(w, "  PASS ")
		} else {
			failColor.Fprint(w, "  FAIL ")
		}
		fmt.Fprintf(w, "%s", r.Name)
		dimColor.Fprintf(w, " (%s)\n", r.Duration.Round(time.Microsecond))
		if r.Reason != "" {
			fmt.Fprintf(w, "       %s\n", r.Reason)
		}
	}
	fmt.Fprintln(w)

	summary := fmt.Sprintf("%d passed, %d failed, %d total", outcome.Passed, outcome.Failed, outcome.Total)
	if !outcome.Success {
		failColor.Fprintf(w, "✗ %s\n", summary)
		return fmt.Errorf("%d test(s) failed", outcome.Failed)
	}
	okColor.Fprintf(w, "✓ %s\n", summary)
	return nil
}
