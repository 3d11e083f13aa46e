package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraforge/pkg/client"
)

func createBuildsCmd() *cobra.Command {
	var opts client.ListBuildsOptions

	cmd := &cobra.Command{
		Use:   "builds",
		Short: "List recent builds recorded by the server",
		Long: `List recent compile and test runs, newest first.

EXAMPLES:
  contraforge builds
  contraforge builds --kind test --contract Token --limit 50
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuilds(cmd.Context(), cmd.OutOrStdout(), newClient(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "compile or test")
	cmd.Flags().StringVar(&opts.Contract, "contract", "", "filter by contract name")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of builds to show")
	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "cursor from a previous page")

	return cmd
}

func runBuilds(ctx context.Context, w io.Writer, c *client.Client, opts client.ListBuildsOptions) error {
	resp, err := c.ListBuilds(ctx, opts)
	if err != nil {
		return fmt.Errorf("listing builds: %w", err)
	}

	if len(resp.Data) == 0 {
		fmt.Fprintln(w, "No builds found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tCONTRACT\tSOLC\tRESULT\tDURATION\tWHEN")
	for _, b := range resp.Data {
		result := "ok"
		if !b.Success {
			result = "failed"
		}
		if b.Kind == "test" {
			result = fmt.Sprintf("%s (%d/%d)", result, b.Passed, b.Passed+b.Failed)
		}
		if b.Cached {
			result += " cached"
		}
		id := b.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", id, b.Kind, b.ContractName, b.CompilerVersion,
			result, time.Duration(b.DurationMs)*time.Millisecond, b.CreatedAt.Local().Format(time.DateTime))
	}
	tw.Flush()

	if resp.HasMore {
		fmt.Fprintf(w, "\nMore: contraforge builds --cursor %s\n", resp.NextCursor)
	}
	return nil
}
