package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studenttracker/internal/response"
)

const (
	principalKey = "principal"
	claimsKey    = "claims"
)

// Authenticate enforces bearer JWT access tokens signed with HS256. A nil
// denylist skips revocation checks.
func Authenticate(issuer Issuer, denylist Denylist) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}
		claims, err := issuer.Parse(tokenStr)
		if err != nil || claims.Type != TypeAccess {
			response.Abort(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		if denylist != nil {
			revoked, err := denylist.Revoked(c.Request.Context(), claims.ID)
			if err != nil {
				slog.WarnContext(c.Request.Context(), "denylist lookup failed", slog.String("error", err.Error()))
			} else if revoked {
				response.Abort(c, http.StatusUnauthorized, "Token has been revoked")
				return
			}
		}
		p, err := claims.Principal()
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		c.Set(claimsKey, claims)
		c.Set(principalKey, p)
		c.Next()
	}
}

// Require rejects callers the policy denies for an action that does not
// depend on ownership.
func Require(action Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}
		if err := Authorize(p, action, false); err != nil {
			response.Error(c, err)
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the caller set by Authenticate.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// ClaimsFrom returns the verified token claims set by Authenticate.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

// BearerToken extracts the raw token from the Authorization header.
func BearerToken(c *gin.Context) (string, bool) { return bearer(c) }

func bearer(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(authz[len("bearer "):])
	return tok, tok != ""
}
