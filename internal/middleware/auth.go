package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/3tharva/split-the-tab-ai/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// SessionIDKey is the context key for storing the session ID a token was issued for.
const SessionIDKey contextKey = "session_id"

// TokenQueryParam carries the session token on plain GET links, such as the
// summary download, where browsers cannot set headers.
const TokenQueryParam = "token"

// WithSessionID returns a copy of ctx carrying sessionID.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetSessionID extracts the authenticated session ID from the context.
// Returns empty string if not found.
func GetSessionID(ctx context.Context) string {
	sessionID, _ := ctx.Value(SessionIDKey).(string)
	return sessionID
}

// bearerToken parses an "Authorization: Bearer <token>" header value.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", auth.ErrMissingToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", auth.ErrInvalidToken
	}
	return parts[1], nil
}

// RequireSession returns a Connect interceptor that validates session tokens.
// Procedures listed in public skip the check. For all others the token's
// session ID is added to the request context; handlers compare it with the
// session named in the request.
func RequireSession(tokens *auth.SessionTokens, public ...string) connect.UnaryInterceptorFunc {
	skip := make(map[string]bool, len(public))
	for _, p := range public {
		skip[p] = true
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if skip[req.Spec().Procedure] {
				return next(ctx, req)
			}

			tokenString, err := bearerToken(req.Header().Get("Authorization"))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			claims, err := tokens.Validate(tokenString)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithSessionID(ctx, claims.SessionID), req)
		}
	}
}

// RequireSessionHTTP is the plain-HTTP counterpart of RequireSession. The
// token is read from the Authorization header, or from the token query
// parameter when the header is absent.
func RequireSessionHTTP(tokens *auth.SessionTokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r.Header.Get("Authorization"))
			if errors.Is(err, auth.ErrMissingToken) {
				if q := r.URL.Query().Get(TokenQueryParam); q != "" {
					tokenString, err = q, nil
				}
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			claims, err := tokens.Validate(tokenString)
			if err != nil {
				http.Error(w, auth.ErrInvalidToken.Error(), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), claims.SessionID)))
		})
	}
}
