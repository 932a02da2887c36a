package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the feed, thumbnails and cache controls over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().String("listen-addr", "", "HTTP listen address (default :8080)")
	if err := a.v.BindPFlag("listen_addr", cmd.Flags().Lookup("listen-addr")); err != nil {
		panic(err)
	}
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := a.build()
	if err != nil {
		return err
	}
	defer c.controller.Close()

	if a.cfg.SweepInterval > 0 {
		c.cache.StartSweeper(ctx, a.cfg.SweepInterval)
	}

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           newServer(c.controller, c.cache, c.loader, a.assetHosts(), a.logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().
			Str("addr", a.cfg.ListenAddr).
			Str("base_url", a.cfg.BaseURL).
			Str("user_agent", a.cfg.UserAgent).
			Msg("Starting feed proxy server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info().Msg("Shutting down feed proxy server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// assetHosts lists the hosts whose assets the proxy serves: the site itself.
func (a *app) assetHosts() []string {
	u, err := url.Parse(a.cfg.BaseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
