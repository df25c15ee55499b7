package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Inspect or change which collectors you have approved",
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List approved collectors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newConsent(nil)
		if err != nil {
			return err
		}
		names := m.Approved()
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No collectors approved.")
			return nil
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

var approvalsGrantCmd = &cobra.Command{
	Use:   "grant <collector>...",
	Short: "Approve collectors without being prompted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newConsent(nil)
		if err != nil {
			return err
		}
		for _, n := range args {
			m.Grant(n)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Approved %d collector(s).\n", len(args))
		return nil
	},
}

var approvalsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every approval",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newConsent(nil)
		if err != nil {
			return err
		}
		m.Clear()
		fmt.Fprintln(cmd.OutOrStdout(), "Approvals cleared.")
		return nil
	},
}

func init() {
	approvalsCmd.AddCommand(approvalsListCmd, approvalsGrantCmd, approvalsClearCmd)
	rootCmd.AddCommand(approvalsCmd)
}
