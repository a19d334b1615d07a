// Package requestid attaches a correlation id to every HTTP request.
//
// Middleware reuses a well-formed X-Request-ID header from the caller (a load
// balancer or a gateway retry) and generates a UUID otherwise. The id is echoed
// in the response header and stored in the request context, where
// FromContext reads it and LoggerExtractor adds it to every slog record.
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
package requestid
