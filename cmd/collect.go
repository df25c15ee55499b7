package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fr4iser90/FoundryCord-sub001/internal/bridge"
	"github.com/fr4iser90/FoundryCord-sub001/internal/consent"
	"github.com/fr4iser90/FoundryCord-sub001/internal/instrument"
	"github.com/fr4iser90/FoundryCord-sub001/internal/page"
	"github.com/fr4iser90/FoundryCord-sub001/internal/snapshot"
	"github.com/fr4iser90/FoundryCord-sub001/internal/value"
)

var (
	collectURL     string
	collectBrowser bool
	collectFormat  string
	collectOutput  string
	collectSend    bool
	collectContext string
	collectEvery   time.Duration
)

var collectCmd = &cobra.Command{
	Use:   "collect [collector...]",
	Short: "Run collectors against a page and write a snapshot file",
	Long: `Run the named collectors, or all of them, against a page.

Collectors that need consent prompt once; the answer is remembered. The
snapshot is written to the output directory and, with --send, delivered to
the dashboard backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		in := value.Null()
		if collectContext != "" {
			v, err := value.Parse([]byte(collectContext))
			if err != nil {
				return fmt.Errorf("invalid --context: %w", err)
			}
			in = v
		}

		rec := newRecorder()
		p, closePage, err := openPage(ctx, cfg.PageURL, collectBrowser, rec)
		if err != nil {
			return err
		}
		defer closePage()

		b, err := newBridge(cmd, p, rec)
		if err != nil {
			return err
		}
		if collectSend {
			if err := b.Init(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: no security token (%v); sending without it\n", err)
			}
		}

		if collectEvery <= 0 {
			return collectOnce(ctx, cmd, b, args, in)
		}

		go func() {
			if err := b.Consent().Watch(ctx); err != nil && !errors.Is(err, consent.ErrNotWatchable) {
				logger.Warn("approvals_watch_stopped", zap.Error(err))
			}
		}()
		ticker := time.NewTicker(collectEvery)
		defer ticker.Stop()
		for {
			if err := collectOnce(ctx, cmd, b, args, in); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

// openPage returns the page to collect from. Without a URL there is no page
// and only the instrumentation collectors run. A browser page reports its
// errors and console output into rec.
func openPage(ctx context.Context, url string, browser bool, rec *instrument.Recorder) (page.Page, func(), error) {
	noop := func() {}
	if url == "" {
		if browser {
			return nil, noop, errors.New("--browser needs a page URL (--url or page_url)")
		}
		return nil, noop, nil
	}
	if !browser {
		p, err := page.StaticFromURL(url)
		if err != nil {
			return nil, noop, err
		}
		return p, noop, nil
	}
	br, err := page.NewBrowser(ctx, url, rec)
	if err != nil {
		return nil, noop, err
	}
	return br, br.Close, nil
}

func collectOnce(ctx context.Context, cmd *cobra.Command, b *bridge.Bridge, names []string, in value.Value) error {
	console := b.Recorder().Console(logger.Named("console"))
	n := len(names)
	if n == 0 {
		n = b.Registry().Len()
	}
	console.Infof("collecting %d collector(s) from %q", n, cfg.PageURL)

	var snap *snapshot.Snapshot
	b.Recorder().Guard(func() {
		snap = b.CollectState(ctx, names, in)
	})

	for _, name := range snap.Names() {
		if snap.Failed(name) {
			r, _ := snap.Result(name)
			msg, _ := r.Get("error")
			console.Warnf("collector %s: %s", name, msg.Str())
		}
	}

	path, err := writeSnapshot(snap, collectFormat, collectOutput)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot written to %s\n", path)

	if collectSend {
		res := b.Send(ctx, snap)
		if !res.OK() {
			return fmt.Errorf("send snapshot: %w", res.Err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Snapshot sent.")
	}
	return nil
}

// writeSnapshot renders s and writes it to output, or to a timestamped file
// in the configured output directory when output is empty.
func writeSnapshot(s *snapshot.Snapshot, format, output string) (string, error) {
	if format == "" {
		format = cfg.DefaultFormat
	}
	renderer := snapshot.RendererFor(format)
	data, err := renderer.Render(s)
	if err != nil {
		return "", fmt.Errorf("render snapshot: %w", err)
	}

	path := output
	if path == "" {
		outputDir := cfg.OutputDir
		if outputDir == "" {
			outputDir = "."
		}
		stamp := strings.ReplaceAll(s.Time().UTC().Format("20060102T150405.000Z"), ".", "")
		path = filepath.Join(outputDir, snapshotFilePrefix+stamp+renderer.Ext())
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write output file: %w", err)
	}
	return path, nil
}

const snapshotFilePrefix = "statebridge-"

func init() {
	collectCmd.Flags().StringVar(&collectURL, "url", "", "page URL to collect from")
	collectCmd.Flags().BoolVar(&collectBrowser, "browser", false, "load the page in headless Chrome instead of describing it statically")
	collectCmd.Flags().StringVarP(&collectFormat, "format", "f", "", "output format: markdown or json")
	collectCmd.Flags().StringVarP(&collectOutput, "output", "o", "", "output file path")
	collectCmd.Flags().BoolVar(&collectSend, "send", false, "send the snapshot to the dashboard backend")
	collectCmd.Flags().StringVar(&collectContext, "context", "", "JSON value passed to every collector")
	collectCmd.Flags().DurationVar(&collectEvery, "every", 0, "keep collecting at this interval until interrupted")
	bindFlag(collectCmd, "page_url", "url")
	rootCmd.AddCommand(collectCmd)
}
