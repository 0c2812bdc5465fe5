package testutil

import (
	"context"
	"net/http"

	"examledger/internal/platform/middleware"
)

// WithCaller stamps the request context with an authenticated caller
// address, standing in for the bearer-token middleware in handler tests.
func WithCaller(req *http.Request, address string) *http.Request {
	return req.WithContext(
		context.WithValue(req.Context(), middleware.ContextKeyCaller, address),
	)
}
