// Package auth carries the authenticated caller identity through the
// request context and extracts credentials from incoming requests.
package auth

import (
	"context"
	"net/http"
	"strings"
)

type Principal struct {
	APIKey string
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}

// TokenFrom extracts the caller's API key from the request. The
// Authorization bearer header wins; WebSocket upgrade requests may
// instead carry an access_token query parameter because browsers
// cannot set headers on WebSocket connections.
func TokenFrom(r *http.Request) (string, bool) {
	if token, ok := parseBearer(r); ok {
		return token, true
	}
	if isWebSocketUpgrade(r) {
		token := strings.TrimSpace(r.URL.Query().Get("access_token"))
		if token != "" {
			return token, true
		}
	}
	return "", false
}

func parseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}
