package billing

import (
	"crypto/subtle"
	"net/http"

	"github.com/Kiranbanna12/setup-first-sub002/handler"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/jwt"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/ratelimiter"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/subscription"
)

// ServiceTokenHeader is an alternative to a bearer token for schedulers that
// cannot set Authorization.
const ServiceTokenHeader = "X-Service-Token"

func renderUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	_ = handler.JSONError(handler.ErrUnauthorized.Wrap(err, "Missing or invalid credentials")).Render(w, r)
}

// requireServiceToken admits callers presenting the internal service token.
func (m *Module) requireServiceToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := jwt.BearerTokenExtractor(r)
		if err != nil {
			token = r.Header.Get(ServiceTokenHeader)
		}
		if m.serviceToken == "" || token == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(m.serviceToken)) != 1 {
			m.log.WarnContext(r.Context(), "internal route rejected", "path", r.URL.Path)
			renderUnauthorized(w, r, jwt.ErrInvalidToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// profile is the caller as the token describes them.
func profile(ctx handler.Context) subscription.Profile {
	p := subscription.Profile{UserID: jwt.UserID(ctx)}
	if claims, ok := jwt.GetClaims(ctx); ok {
		p.Email = claims.Email
		p.Name = claims.Name
	}
	return p
}

func (m *Module) renderLimited(w http.ResponseWriter, r *http.Request, _ ratelimiter.Result) {
	m.log.WarnContext(r.Context(), "payment verification throttled", logger.UserID(jwt.UserID(r.Context())))
	_ = handler.JSONError(handler.ErrTooManyRequests.Wrap(nil, "Too many verification attempts, try again later")).Render(w, r)
}

// limiterFailed lets the request through; the signature check still runs.
func (m *Module) limiterFailed(w http.ResponseWriter, r *http.Request, next http.Handler, err error) {
	m.log.ErrorContext(r.Context(), "rate limiter unavailable", logger.Error(err))
	next.ServeHTTP(w, r)
}
