package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/config"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/httpserver"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/jwt"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the billing API and run the reconciliation sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	var (
		httpCfg httpserver.Config
		authCfg jwt.Config
	)
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	if err := config.Load(&authCfg); err != nil {
		return err
	}
	auth, err := jwt.New(authCfg)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(a.log))
	handler := a.router(auth, httpCfg.ProbeTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, handler)
	})
	g.Go(func() error {
		return a.sweeper.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.InfoContext(context.WithoutCancel(ctx), "billingd stopped")
	return nil
}
