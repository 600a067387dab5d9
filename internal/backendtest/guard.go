package backendtest

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/statsclient/token"
)

type claimsContextKey struct{}

func claimsFromContext(ctx context.Context) (*token.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*token.Claims)
	return c, ok
}

// guard validates the bearer token, enforces the usage cap and role, and re-issues the
// token with its usage count advanced. Only calls that pass every check get a New-Token.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, message(MsgTokenRequired))
			return
		}

		claims, err := s.signer.Verify(raw)
		if err != nil {
			if errors.Is(err, token.ErrExpired) {
				writeJSON(w, http.StatusUnauthorized, message(MsgTokenExpired))
				return
			}
			writeJSON(w, http.StatusUnauthorized, message(MsgTokenInvalid))
			return
		}

		role := normalizeRole(claims.Role)
		if claims.UsageCount >= s.UsageLimit(role) {
			writeJSON(w, http.StatusForbidden, message(MsgUsageLimit))
			return
		}

		if !canAccess(role, r.URL.Path) {
			writeJSON(w, http.StatusForbidden, message(MsgEndpointForbidden))
			return
		}

		renewed, err := s.signer.Sign(claims.UserID, role, claims.UsageCount+1, s.ttl)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, message("İşlem hatası!"))
			return
		}
		w.Header().Set(headerNewToken, renewed)

		s.logger.Debug("guarded call", "user_id", claims.UserID, "role", role, "path", r.URL.Path)
		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	tok := strings.TrimSpace(value[len(bearer):])
	if tok == "" {
		return "", false
	}

	return tok, true
}
