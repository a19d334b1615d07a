package handler

import (
	"log/slog"
	"net/http"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/requestid"
)

// NewErrorHandler logs binding and rendering failures and renders them with
// JSONError. 4xx are logged at WARN, everything else at ERROR.
func NewErrorHandler(log *slog.Logger) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx Context, err error) {
		r := ctx.Request()
		status, _ := Classify(err)

		level := slog.LevelError
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		log.LogAttrs(r.Context(), level, "request error",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("http"),
		)

		if renderErr := JSONError(err).Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.ErrorContext(r.Context(), "failed to render error response", logger.Error(renderErr))
		}
	}
}
