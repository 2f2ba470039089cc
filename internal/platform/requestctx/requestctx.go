// Package requestctx carries per-request values resolved by the HTTP
// middleware: the authenticated user and the negotiated locale.
package requestctx

import (
	"context"

	"golang.org/x/text/language"
)

type userIDKey struct{}

type localeKey struct{}

// WithUserID stores the authenticated user's identifier in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated user's identifier, or the
// empty string when the request carried no credential.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userIDKey{}).(string)
	return value
}

// WithLocale stores the negotiated language tag in ctx.
func WithLocale(ctx context.Context, tag language.Tag) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, localeKey{}, tag)
}

// LocaleFromContext returns the negotiated language tag. The bool
// reports whether the middleware resolved one for this request.
func LocaleFromContext(ctx context.Context) (language.Tag, bool) {
	if ctx == nil {
		return language.Tag{}, false
	}
	value, ok := ctx.Value(localeKey{}).(language.Tag)
	return value, ok
}
