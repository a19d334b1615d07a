package requestid

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// Header carries the request id in both directions.
const Header = "X-Request-ID"

const maxLength = 128

var wellFormed = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Middleware stores a request id in the context and echoes it in the
// response. Caller ids that are empty, too long or carry characters outside
// [a-zA-Z0-9_-] are replaced, so they are safe to log verbatim.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if !valid(id) {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), id)))
	})
}

func valid(id string) bool {
	return id != "" && len(id) <= maxLength && wellFormed.MatchString(id)
}
