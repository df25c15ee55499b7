package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fr4iser90/FoundryCord-sub001/internal/snapshot"
)

var sendCmd = &cobra.Command{
	Use:   "send [file]",
	Short: "Send a snapshot file to the dashboard backend",
	Long: `Send a snapshot file to the dashboard backend. Without a file, the newest
snapshot in the output directory is sent.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBridge(cmd, nil, nil)
		if err != nil {
			return err
		}

		path := ""
		if len(args) == 1 {
			path = args[0]
		} else if path, err = latestSnapshot(cfg.OutputDir); err != nil {
			return err
		}

		var snap *snapshot.Snapshot
		if path != "" {
			snap, err = readSnapshot(path)
			if err != nil {
				return err
			}
		}
		if snap == nil {
			// Reported by the bridge without touching the network.
			res := b.Send(cmd.Context(), nil)
			return res.Err
		}

		if err := b.Init(cmd.Context()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: no security token (%v); sending without it\n", err)
		}
		res := b.Send(cmd.Context(), snap)
		if !res.OK() {
			return fmt.Errorf("send %s: %w", path, res.Err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent %s (%d collectors).\n", path, len(snap.Names()))
		return nil
	},
}

// readSnapshot parses a snapshot file in either format.
func readSnapshot(path string) (*snapshot.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, err
	}
	return snapshot.ParserFor(path).Parse(data)
}

// latestSnapshot returns the newest snapshot file in dir, or "" if there is
// none.
func latestSnapshot(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.Type().IsRegular() && strings.HasPrefix(n, snapshotFilePrefix) &&
			(strings.HasSuffix(n, ".json") || strings.HasSuffix(n, ".md")) {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	// Timestamped names sort chronologically.
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
