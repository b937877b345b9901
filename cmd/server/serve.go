package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tillerstead/tillerpro/internal/metrics"
	"github.com/tillerstead/tillerpro/internal/pricing"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and admin site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a)
		},
	}
}

func runServe(ctx context.Context, a *app) error {
	for _, w := range a.cfg.Warnings() {
		a.log.Warn("configuration warning", zap.String("detail", w))
	}

	st, err := openStores(ctx, a.cfg, a.log)
	if err != nil {
		return err
	}
	defer st.Close()

	if a.cfg.Server.AutoMigrate {
		if err := st.migrate(); err != nil {
			return err
		}
		if _, err := runSeed(a, st, false); err != nil {
			return err
		}
	}

	fallback, err := pricing.LoadCatalog(a.cfg.Pricing.CatalogPath)
	if err != nil {
		return err
	}

	srv := newServer(serverDeps{
		db:        st.db,
		snapshots: st.snapshots,
		fallback:  fallback,
		metrics:   metrics.New(),
		log:       a.log,
		secret:    a.cfg.Admin.SessionSecret,
		loginRate: a.cfg.Server.LoginRate,
		burst:     a.cfg.Server.LoginBurst,
		idleTTL:   a.cfg.Server.SessionIdleTTL,
	})

	httpSrv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serveHTTP(ctx, httpSrv, a.cfg.Server.ShutdownTimeout, a.log)
}

// serveHTTP runs srv until ctx is cancelled, then shuts it down within timeout.
func serveHTTP(ctx context.Context, srv *http.Server, timeout time.Duration, log *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info("server stopped")
		return nil
	})

	return g.Wait()
}
