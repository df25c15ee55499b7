package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fr4iser90/FoundryCord-sub001/internal/bridge"
	"github.com/fr4iser90/FoundryCord-sub001/internal/collector"
	"github.com/fr4iser90/FoundryCord-sub001/internal/consent"
	"github.com/fr4iser90/FoundryCord-sub001/internal/instrument"
	"github.com/fr4iser90/FoundryCord-sub001/internal/page"
	"github.com/fr4iser90/FoundryCord-sub001/internal/transport"
)

// surfaceFor prompts on the command's input. A terminal gets the dialog.
func surfaceFor(cmd *cobra.Command) consent.Surface {
	if f, ok := cmd.InOrStdin().(*os.File); ok {
		return consent.SelectSurface(f, cmd.ErrOrStderr())
	}
	return &consent.LineSurface{In: cmd.InOrStdin(), Out: cmd.ErrOrStderr()}
}

// newConsent opens the approval set in the data directory.
func newConsent(surface consent.Surface) (*consent.Manager, error) {
	store, err := consent.NewStore()
	if err != nil {
		return nil, err
	}
	m := consent.NewManager(store, surface, logger.Named("consent"))
	m.Load()
	return m, nil
}

// newRecorder sizes the instrumentation buffers from the config.
func newRecorder() *instrument.Recorder {
	return instrument.NewRecorder(cfg.MaxErrors, cfg.MaxConsole, logger.Named("instrument"))
}

// newBridge wires a bridge for the current config. p may be nil, in which
// case only the instrumentation collectors are registered. A nil rec gets a
// fresh recorder.
func newBridge(cmd *cobra.Command, p page.Page, rec *instrument.Recorder) (*bridge.Bridge, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	m, err := newConsent(surfaceFor(cmd))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = newRecorder()
	}
	reg := collector.NewRegistry()
	collector.RegisterDefaults(reg, p, rec)

	return bridge.New(bridge.Options{
		Registry:         reg,
		Consent:          m,
		Recorder:         rec,
		Sender:           transport.NewClient(cfg.TokenURL(), cfg.SnapshotURL()),
		Logger:           logger.Named("bridge"),
		CollectorTimeout: timeout,
	}), nil
}
