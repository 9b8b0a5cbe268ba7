package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-maps/internal/auth"
	"github.com/joeblew999/plat-maps/internal/humastar"
)

var apiError = humastar.HTTPError

// userID is the authenticated caller; the auth middleware guarantees one
// on secured operations.
func userID(ctx context.Context) string {
	u, _ := auth.UserFrom(ctx)
	return u.ID
}

// secured marks an operation as requiring a bearer token.
func secured(o *huma.Operation) {
	o.Security = auth.Security
}

func status(code int) func(*huma.Operation) {
	return func(o *huma.Operation) { o.DefaultStatus = code }
}
