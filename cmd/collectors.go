package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fr4iser90/FoundryCord-sub001/internal/collector"
	"github.com/fr4iser90/FoundryCord-sub001/internal/instrument"
	"github.com/fr4iser90/FoundryCord-sub001/internal/page"
)

var collectorsCmd = &cobra.Command{
	Use:   "collectors",
	Short: "List the built-in collectors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newConsent(nil)
		if err != nil {
			return err
		}
		reg := collector.NewRegistry()
		every := &page.Static{
			View:    &page.Viewport{},
			Feat:    &page.Features{},
			DOM:     &page.DOMSummary{},
			Storage: &page.StorageKeys{},
		}
		collector.RegisterDefaults(reg, every, instrument.NewRecorder(1, 1, nil))

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCONSENT\tDESCRIPTION")
		for _, c := range reg.List() {
			status := "not needed"
			if c.Options.RequiresApproval {
				status = "required"
				if m.IsApproved(c.Name) {
					status = "approved"
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, status, c.Options.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(collectorsCmd)
}
