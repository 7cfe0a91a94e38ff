package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var regenCmd = &cobra.Command{
	Use:   "regen",
	Short: "Regenerate proxy configuration and reload the proxy",
	Long: `Write one config file per active domain, remove files of every other
domain and signal the proxy. Safe to run at any time: unchanged files are
left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.RegenerateAndReload(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
		if !result.Success {
			return errors.New("proxy reload failed")
		}
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <domain>",
	Short: "Print the config file a domain would get",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		content, err := a.engine.Preview(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(content)
		return err
	},
}

func init() {
	rootCmd.AddCommand(regenCmd, previewCmd)
}
