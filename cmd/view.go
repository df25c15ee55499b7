package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fr4iser90/FoundryCord-sub001/internal/snapshot"
	"github.com/fr4iser90/FoundryCord-sub001/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "View a snapshot file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		s, err := readSnapshot(path)
		if err != nil {
			return err
		}
		if plainOutput {
			return printSnapshot(cmd.OutOrStdout(), s)
		}
		return tui.Run(s, path)
	},
}

// printSnapshot writes a plain-text rendering of s to w.
func printSnapshot(w io.Writer, s *snapshot.Snapshot) error {
	fmt.Fprintln(w, "## Summary")
	fmt.Fprintf(w, "  Taken:       %s\n", s.Time().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "  Collectors:  %d\n", len(s.Names()))
	failed := 0
	for _, n := range s.Names() {
		if s.Failed(n) {
			failed++
		}
	}
	fmt.Fprintf(w, "  Failed:      %d\n", failed)
	fmt.Fprintln(w)

	if len(s.Names()) == 0 {
		fmt.Fprintln(w, "  (no results)")
		return nil
	}
	for _, n := range s.Names() {
		r, _ := s.Result(n)
		body, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("render %s: %w", n, err)
		}
		fmt.Fprintf(w, "## %s\n", n)
		fmt.Fprintln(w, indent(string(body), "  "))
		fmt.Fprintln(w)
	}
	return nil
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
