package binder

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Path copies chi URL parameters into fields tagged `path:"name"`. Fields
// without a path tag are left alone.
func Path() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		rctx := chi.RouteContext(r.Context())
		if rctx == nil {
			return nil
		}

		values := make(map[string][]string, len(rctx.URLParams.Keys))
		for i, key := range rctx.URLParams.Keys {
			if i < len(rctx.URLParams.Values) {
				values[key] = append(values[key], rctx.URLParams.Values[i])
			}
		}
		return bindToStruct(v, "path", values, ErrFailedToParsePath)
	}
}
