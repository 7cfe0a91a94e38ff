package main

import (
	"fmt"
	"io"

	"github.com/sifan077/redirector/internal/app/redirect"
	"github.com/spf13/cobra"
)

var testFlags struct {
	userAgent string
}

var testCmd = &cobra.Command{
	Use:   "test <domain> [path]",
	Short: "Dry-run the redirect decision for a request",
	Long: `Resolve a request against the current store state without touching the
emitted configuration. The decision is the one the proxy makes once the
configuration is regenerated.

Examples:
  redirectctl test old-example.com
  redirectctl test old-example.com /blog/post --ua "Googlebot/2.1"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.Flags().StringVar(&testFlags.userAgent, "ua", "", "user agent of the simulated request")
}

func runTest(cmd *cobra.Command, args []string) error {
	path := "/"
	if len(args) == 2 {
		path = args[1]
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	decision, err := a.engine.TestRedirect(cmd.Context(), args[0], path, testFlags.userAgent)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), decision)
	}
	printDecision(cmd.OutOrStdout(), decision)
	return nil
}

func printDecision(w io.Writer, d redirect.Decision) {
	if d.Matched {
		fmt.Fprintf(w, "%s %d -> %s\n", d.Path, d.StatusCode, d.TargetURL)
	} else {
		fmt.Fprintf(w, "%s %d\n", d.Path, d.StatusCode)
	}
	fmt.Fprintf(w, "  type:    %s\n", d.Type)
	if d.Reason != "" {
		fmt.Fprintf(w, "  reason:  %s\n", d.Reason)
	}
	fmt.Fprintf(w, "  crawler: %s\n", d.Crawler)
}
