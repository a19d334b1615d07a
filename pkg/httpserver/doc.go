// Package httpserver runs the billing HTTP API with graceful shutdown.
//
// Server.Run blocks until its context is cancelled, then drains in-flight
// requests within the configured shutdown timeout. It does not install
// signal handlers; the binary cancels the context on SIGINT or SIGTERM.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// LivenessHandler and ReadinessHandler back the /health/live and
// /health/ready probes. Readiness runs named checks such as pg.Healthcheck
// and redis.Healthcheck and answers 503 when any of them fails.
package httpserver
