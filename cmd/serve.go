package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fr4iser90/FoundryCord-sub001/internal/ingest"
)

var serveTokenTTL time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local backend that issues tokens and stores snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := ingest.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		store.SetTokenTTL(serveTokenTTL)

		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		log := logger.Named("ingest")
		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           otelhttp.NewHandler(ingest.NewRouter(ingest.NewHandlers(store, log), log), "statebridge-ingest"),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s (database %s)\n", cfg.ListenAddr, cfg.Database)
		log.Info("server_started", zap.String("addr", cfg.ListenAddr))

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("server_stopping")
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address")
	serveCmd.Flags().String("db", "", "sqlite database path")
	serveCmd.Flags().DurationVar(&serveTokenTTL, "token-ttl", ingest.DefaultTokenTTL, "lifetime of issued tokens")
	bindFlag(serveCmd, "listen_addr", "addr")
	bindFlag(serveCmd, "database", "db")
	rootCmd.AddCommand(serveCmd)
}
