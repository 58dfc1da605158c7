package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Anurag-122004/CIRC/internal/config"
	"github.com/Anurag-122004/CIRC/internal/devserver"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local stub backend",
	Long: `Run a local stand-in for the CIRC backend.

It implements the same API surface (start-session, websocket chat,
analyze-image) with an echo bot behind it, so the client can be exercised
end to end without a real backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		addr := cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		// Cancellation context for graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := &http.Server{
			Addr:              addr,
			Handler:           devserver.NewHandler(),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("[devserver] shutdown error")
			}
		}()

		log.Info().Str("addr", addr).Msg("[devserver] listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serving: %w", err)
		}
		log.Info().Msg("[devserver] shutdown complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (overrides listen_addr from config)")
}
