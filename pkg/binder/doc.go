// Package binder fills typed request structs for handler.Wrap.
//
// JSON decodes a strict application/json body, Path copies chi URL
// parameters into `path` tagged fields, and Validate runs the struct's
// go-playground/validator tags. Binders run in the order they are given:
//
//	handler.Wrap(cancel, handler.WithBinders[handler.Context, cancelRequest](
//		binder.Path(), binder.JSON(), binder.Validate(),
//	))
//
// FieldErrors turns a validation failure into per-field messages keyed by
// the JSON field name.
package binder
