package auth

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// SchemeName is the OpenAPI security scheme operations reference.
const SchemeName = "bearer"

// SecurityScheme describes bearer JWT auth for the OpenAPI document.
func SecurityScheme() *huma.SecurityScheme {
	return &huma.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"}
}

// Security is the per-operation requirement for authenticated routes.
var Security = []map[string][]string{{SchemeName: {}}}

// Middleware authenticates operations that declare the bearer requirement.
// Operations without it pass through untouched. onUser, if set, is called
// for every authenticated request.
func Middleware(api huma.API, v *Verifier, onUser func(context.Context, User)) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !requiresAuth(ctx.Operation()) {
			next(ctx)
			return
		}

		token := bearer(ctx.Header("Authorization"))
		if token == "" {
			if c, err := huma.ReadCookie(ctx, CookieName); err == nil {
				token = c.Value
			}
		}
		u, err := v.Verify(token)
		if err != nil {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized", err)
			return
		}
		if onUser != nil {
			onUser(ctx.Context(), u)
		}
		next(huma.WithValue(ctx, ctxKey{}, u))
	}
}

func requiresAuth(op *huma.Operation) bool {
	if op == nil {
		return false
	}
	for _, req := range op.Security {
		if _, ok := req[SchemeName]; ok {
			return true
		}
	}
	return false
}
