// Package logger builds *slog.Logger instances with functional options and
// provides attribute helpers so log keys stay consistent across packages.
//
// New picks a JSON or text handler, attaches static attributes and wraps the
// handler in LogHandlerDecorator, which runs ContextExtractor callbacks on every
// record. That is how request and user ids stored in a context end up in logs
// written deep inside the lifecycle code.
//
// # Usage
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "billingd"),
//		logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "subscription transition",
//		logger.UserID(uid),
//		logger.SubscriptionID(id),
//		logger.Transition("active", "cancelling"),
//	)
//
// Helpers such as Error, GatewayRef and PaymentRef return an empty slog.Attr
// for zero inputs, which slog drops, so call sites need no nil checks.
package logger
