package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kiranbanna12/setup-first-sub002/handler"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/binder"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
)

type cancelRequest struct {
	ID         string `path:"id" json:"-" validate:"required,uuid"`
	AtCycleEnd bool   `json:"atCycleEnd"`
}

type cancelResponse struct {
	ID         string `json:"id"`
	AtCycleEnd bool   `json:"atCycleEnd"`
}

func newRouter(h handler.HandlerFunc[handler.Context, cancelRequest]) http.Handler {
	r := chi.NewRouter()
	r.Post("/subscriptions/{id}/cancel", handler.Wrap(h,
		handler.WithBinders[handler.Context, cancelRequest](binder.Path(), binder.JSON(), binder.Validate()),
		handler.WithErrorHandler[handler.Context, cancelRequest](handler.NewErrorHandler(logger.Discard())),
	))
	return r
}

func do(t *testing.T, h http.Handler, path, contentType, body string) (*httptest.ResponseRecorder, handler.ErrorBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var eb handler.ErrorBody
	if rec.Code >= http.StatusBadRequest {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eb))
	}
	return rec, eb
}

const validID = "0b6f3f5e-8c4e-4f0a-9a61-2b8f0c9f7d10"

func TestWrap_BindsAndRenders(t *testing.T) {
	t.Parallel()
	h := newRouter(func(_ handler.Context, req cancelRequest) handler.Response {
		return handler.JSON(cancelResponse{ID: req.ID, AtCycleEnd: req.AtCycleEnd})
	})

	rec, _ := do(t, h, "/subscriptions/"+validID+"/cancel", "application/json", `{"atCycleEnd":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"`+validID+`","atCycleEnd":true}`, rec.Body.String())
}

func TestWrap_BindingFailures(t *testing.T) {
	t.Parallel()
	h := newRouter(func(handler.Context, cancelRequest) handler.Response {
		t.Error("handler must not run")
		return handler.JSON(nil)
	})

	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		wantStatus  int
		wantCode    string
		wantDetails map[string][]string
	}{
		{
			name: "invalid id", path: "/subscriptions/nope/cancel", contentType: "application/json", body: `{}`,
			wantStatus: http.StatusUnprocessableEntity, wantCode: "validation_error",
			wantDetails: map[string][]string{"id": {"must be a valid UUID"}},
		},
		{
			name: "malformed json", path: "/subscriptions/" + validID + "/cancel", contentType: "application/json", body: `{`,
			wantStatus: http.StatusBadRequest, wantCode: "bad_request",
		},
		{
			name: "wrong media type", path: "/subscriptions/" + validID + "/cancel", contentType: "text/plain", body: `{}`,
			wantStatus: http.StatusUnsupportedMediaType, wantCode: "unsupported_media_type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, eb := do(t, h, tt.path, tt.contentType, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, eb.Error.Code)
			assert.Equal(t, tt.wantDetails, eb.Error.Details)
		})
	}
}

func TestWrap_NilResponse(t *testing.T) {
	t.Parallel()
	h := newRouter(func(handler.Context, cancelRequest) handler.Response { return nil })

	rec, eb := do(t, h, "/subscriptions/"+validID+"/cancel", "application/json", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", eb.Error.Code)
}

func TestWrap_Decorators(t *testing.T) {
	t.Parallel()
	var order []string
	mark := func(name string) handler.Decorator[handler.Context, struct{}] {
		return func(next handler.HandlerFunc[handler.Context, struct{}]) handler.HandlerFunc[handler.Context, struct{}] {
			return func(ctx handler.Context, req struct{}) handler.Response {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	h := handler.Wrap(func(handler.Context, struct{}) handler.Response {
		order = append(order, "handler")
		return handler.JSON(map[string]bool{"ok": true}, handler.WithJSONStatus(http.StatusAccepted))
	}, handler.WithDecorators(mark("outer"), mark("inner")))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestWrap_ContextCarriesRequestValues(t *testing.T) {
	t.Parallel()
	type key struct{}
	h := handler.Wrap(func(ctx handler.Context, _ struct{}) handler.Response {
		return handler.JSON(ctx.Value(key{}))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), key{}, "u1"))
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.JSONEq(t, `"u1"`, rec.Body.String())
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{name: "http error", err: handler.ErrConflict, wantStatus: http.StatusConflict, wantCode: "conflict", wantMsg: "Conflict"},
		{
			name:       "wrapped http error with message",
			err:        errors.Join(errors.New("ctx"), handler.ErrServiceUnavailable.Wrap(errors.New("timeout"), "Try again")),
			wantStatus: http.StatusServiceUnavailable, wantCode: "service_unavailable", wantMsg: "Try again",
		},
		{
			name:       "validation error",
			err:        handler.ValidationError{"planId": {"is required"}},
			wantStatus: http.StatusUnprocessableEntity, wantCode: "validation_error", wantMsg: "Validation failed",
		},
		{
			name:       "unknown",
			err:        errors.New("pq: connection reset"),
			wantStatus: http.StatusInternalServerError, wantCode: "internal_error",
			wantMsg: "An error occurred processing your request",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, detail := handler.Classify(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, detail.Code)
			assert.Equal(t, tt.wantMsg, detail.Message)
		})
	}
}

func TestHTTPError_Unwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("gateway timeout")
	err := handler.ErrServiceUnavailable.Wrap(cause, "Try again")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "service_unavailable")
}
