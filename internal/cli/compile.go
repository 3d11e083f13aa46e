package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraforge/internal/chains"
	"github.com/pendergraft/contraforge/pkg/client"
)

type compileOptions struct {
	sourcePath      string
	contract        string
	compilerVersion string
	out             string
}

func createCompileCmd() *cobra.Command {
	var opts compileOptions

	cmd := &cobra.Command{
		Use:   "compile <file.sol>",
		Short: "Compile a single-file contract",
		Long: `Compile a single-file Solidity contract on the server.

The contract name defaults to the file name without .sol.

EXAMPLES:
  contraforge compile src/Token.sol
  contraforge compile src/Token.sol --contract MyToken --compiler-version 0.8.24
  contraforge compile src/Token.sol --out out/Token.json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.sourcePath = args[0]
			opts.compilerVersion = getCompilerVersion(opts.compilerVersion)
			return runCompile(cmd.Context(), cmd.OutOrStdout(), newClient(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.contract, "contract", "", "contract name (default: file name)")
	cmd.Flags().StringVar(&opts.compilerVersion, "compiler-version", "", "solc version (default from config or server)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write the ABI and bytecode to this JSON file")

	return cmd
}

// artifact is the file written by compile --out
type artifact struct {
	ContractName    string          `json:"contractName"`
	CompilerVersion string          `json:"compilerVersion"`
	ABI             json.RawMessage `json:"abi"`
	Bytecode        string          `json:"bytecode"`
}

func runCompile(ctx context.Context, w io.Writer, c *client.Client, opts compileOptions) error {
	source, err := os.ReadFile(opts.sourcePath)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	name := opts.contract
	if name == "" {
		name = contractNameFromPath(opts.sourcePath)
	}

	fmt.Fprintf(w, "🔨 Compiling %s (%s)\n", name, opts.sourcePath)

	result, err := c.Compile(ctx, client.CompileRequest{
		SourceCode:      string(source),
		ContractName:    name,
		CompilerVersion: opts.compilerVersion,
	})
	if err != nil {
		return fmt.Errorf("compile request failed: %w", err)
	}

	if !result.Success {
		failColor.Fprintf(w, "✗ %s failed to compile\n", name)
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.TrimRight(result.Error, "\n"))
		return errors.New("compilation failed")
	}

	abi, _ := chains.ParseABI(result.ABI)

	okColor.Fprintf(w, "✓ %s compiled with solc %s\n", name, result.CompilerVersion)
	dimColor.Fprintf(w, "  %d ABI entries, %d bytes of bytecode\n", len(abi), bytecodeLen(result.Bytecode))
	if inputs := chains.ConstructorInputs(abi); len(inputs) > 0 {
		dimColor.Fprintf(w, "  constructor(%s): pass --constructor-args when verifying\n", formatParams(inputs))
	}

	if opts.out != "" {
		data, err := json.MarshalIndent(artifact{
			ContractName:    result.ContractName,
			CompilerVersion: result.CompilerVersion,
			ABI:             result.ABI,
			Bytecode:        result.Bytecode,
		}, "", "  ")
		if err != nil {
			return err
		}
		if dir := filepath.Dir(opts.out); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
		}
		if err := os.WriteFile(opts.out, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("writing artifact: %w", err)
		}
		fmt.Fprintf(w, "  Written to %s\n", opts.out)
	}
	return nil
}

// contractNameFromPath maps src/Token.sol and test/Token.t.sol to Token
func contractNameFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".sol")
	return strings.TrimSuffix(base, ".t")
}

func formatParams(params []chains.ABIParam) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = strings.TrimSpace(p.Type + " " + p.Name)
	}
	return strings.Join(parts, ", ")
}

func bytecodeLen(hex string) int {
	return len(strings.TrimPrefix(hex, "0x")) / 2
}
