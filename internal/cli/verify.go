package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraforge/pkg/client"
)

type verifyOptions struct {
	sourcePath      string
	address         string
	contract        string
	compilerVersion string
	constructorArgs string
	network         string
}

func createVerifyCmd() *cobra.Command {
	var opts verifyOptions

	cmd := &cobra.Command{
		Use:   "verify <file.sol> --address <0x...>",
		Short: "Verify a deployed contract on the block explorer",
		Long: `Submit a contract's source to the block explorer through the server and
wait for the verification outcome.

A verification that is still pending when the server stops polling is
reported with its GUID; re-check it later with 'contraforge verify status'.

EXAMPLES:
  contraforge verify src/Token.sol --address 0x1234...
  contraforge verify src/Token.sol --address 0x1234... --network mainnet \
    --constructor-args 0x000000000000000000000000000000000000000000000000000000000000002a
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.sourcePath = args[0]
			opts.compilerVersion = getCompilerVersion(opts.compilerVersion)
			opts.network = getNetwork(opts.network)
			return runVerify(cmd.Context(), cmd.OutOrStdout(), newClient(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.address, "address", "", "deployed contract address (required)")
	cmd.Flags().StringVar(&opts.contract, "contract", "", "contract name (default: file name)")
	cmd.Flags().StringVar(&opts.compilerVersion, "compiler-version", "", "solc version the contract was deployed with")
	cmd.Flags().StringVar(&opts.constructorArgs, "constructor-args", "", "ABI-encoded constructor arguments")
	cmd.Flags().StringVar(&opts.network, "network", "", "testnet or mainnet (default from config, then testnet)")
	_ = cmd.MarkFlagRequired("address")

	cmd.AddCommand(createVerifyStatusCmd())

	return cmd
}

func createVerifyStatusCmd() *cobra.Command {
	var network string

	cmd := &cobra.Command{
		Use:   "status <guid>",
		Short: "Re-check a pending verification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newClient().VerificationStatus(cmd.Context(), getNetwork(network), args[0])
			if err != nil {
				return fmt.Errorf("status request failed: %w", err)
			}
			return printSession(cmd.OutOrStdout(), sess)
		},
	}

	cmd.Flags().StringVar(&network, "network", "", "testnet or mainnet (default from config, then testnet)")
	return cmd
}

func runVerify(ctx context.Context, w io.Writer, c *client.Client, opts verifyOptions) error {
	source, err := os.ReadFile(opts.sourcePath)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	name := opts.contract
	if name == "" {
		name = contractNameFromPath(opts.sourcePath)
	}

	fmt.Fprintf(w, "🔍 Verifying %s\n", name)
	fmt.Fprintf(w, "   Network: %s\n", opts.network)
	fmt.Fprintf(w, "   Address: %s\n", opts.address)

	sess, err := c.Verify(ctx, client.VerifyRequest{
		ContractAddress: opts.address,
		SourceCode:      string(source),
		ContractName:    name,
		CompilerVersion: opts.compilerVersion,
		ConstructorArgs: opts.constructorArgs,
		Network:         opts.network,
	})
	if err != nil {
		return fmt.Errorf("verification request failed: %w", err)
	}
	fmt.Fprintln(w)
	return printSession(w, sess)
}

// printSession reports a session; only a failed verification is an error
func printSession(w io.Writer, sess *client.Session) error {
	switch sess.State {
	case client.StateVerified:
		okColor.Fprintln(w, "✓ VERIFIED")
		if sess.Message != "" {
			fmt.Fprintf(w, "  %s\n", sess.Message)
		}
		return nil
	case client.StateFailed:
		failColor.Fprintln(w, "✗ NOT VERIFIED")
		if sess.Message != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sess.Message)
		}
		return errors.New("verification failed")
	default:
		warnColor.Fprintln(w, "… STILL PENDING")
		if sess.Message != "" {
			fmt.Fprintf(w, "  %s\n", sess.Message)
		}
		if sess.GUID != "" {
			fmt.Fprintf(w, "  Re-check with: contraforge verify status %s --network %s\n", sess.GUID, sess.Network)
		}
		return nil
	}
}
