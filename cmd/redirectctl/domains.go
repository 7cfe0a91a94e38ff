package main

import (
	"errors"
	"fmt"

	"github.com/sifan077/redirector/internal/app/model"
	"github.com/sifan077/redirector/internal/app/service"
	"github.com/spf13/cobra"
)

var domainsFlags struct {
	limit  int
	offset int
}

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List and manage domain policies",
	Args:  cobra.NoArgs,
	RunE:  runListDomains,
}

var activateCmd = &cobra.Command{
	Use:   "activate <domain>",
	Short: "Activate a domain and regenerate configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetStatus(cmd, args[0], model.StatusActive)
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <domain>",
	Short: "Deactivate a domain and remove its configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetStatus(cmd, args[0], model.StatusInactive)
	},
}

func init() {
	rootCmd.AddCommand(domainsCmd)
	domainsCmd.AddCommand(activateCmd, deactivateCmd)
	domainsCmd.Flags().IntVar(&domainsFlags.limit, "limit", 100, "maximum number of domains")
	domainsCmd.Flags().IntVar(&domainsFlags.offset, "offset", 0, "number of domains to skip")
}

func runListDomains(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.domains.ListDomains(cmd.Context(), domainsFlags.limit, domainsFlags.offset)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), list)
	}

	tw := newTable(cmd.OutOrStdout(), "NAME", "STATUS", "MODE", "UNMATCHED", "CODE", "PRIORITY", "TARGET")
	for _, d := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			d.Name, d.Status, d.RedirectMode, d.UnmatchedBehavior, d.RedirectCode, d.Priority, d.TargetURL)
	}
	return tw.Flush()
}

func runSetStatus(cmd *cobra.Command, name, status string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	d, cfg, err := a.domains.SetStatus(cmd.Context(), name, status)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), struct {
			Domain *model.Domain         `json:"domain"`
			Config *service.ConfigStatus `json:"config"`
		}{d, cfg})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", d.Name, d.Status)
	return reportConfig(cmd, cfg)
}

// reportConfig prints the regeneration outcome and turns a failed one into a non-zero exit.
func reportConfig(cmd *cobra.Command, cfg *service.ConfigStatus) error {
	if cfg == nil {
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), cfg.Message)
	if !cfg.Success {
		return errors.New("configuration not applied")
	}
	return nil
}
