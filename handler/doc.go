// Package handler provides typed HTTP handlers for the billing API.
//
// A HandlerFunc receives a request struct already filled by binders and
// returns a Response:
//
//	type cancelRequest struct {
//		ID         string `path:"id" json:"-" validate:"required,uuid"`
//		AtCycleEnd bool   `json:"atCycleEnd"`
//	}
//
//	r.Post("/subscriptions/{id}/cancel", handler.Wrap(cancel,
//		handler.WithBinders[handler.Context, cancelRequest](binder.Path(), binder.JSON(), binder.Validate()),
//		handler.WithErrorHandler[handler.Context, cancelRequest](handler.NewErrorHandler(log)),
//	))
//
// JSON writes success bodies as-is. JSONError wraps failures in
// {"error":{"code","message","details"}} with the status chosen by Classify:
// HTTPError carries its own code, validation failures are 422, malformed
// bodies 400, and anything unrecognised an opaque 500.
package handler
