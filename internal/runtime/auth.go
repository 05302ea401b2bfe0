package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/agile-athletes/lrps/config"
)

// LoadJWTSecret resolves the shared JWT secret from config.
// Preference order: server.jwt_secret, general.jwt_secret (or JWT_SECRET).
func LoadJWTSecret(cfg *config.Config) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if s := cfg.JWTSecret(); s != "" {
		return []byte(s), nil
	}
	return nil, errors.New("jwt secret not configured (server.jwt_secret, general.jwt_secret or JWT_SECRET)")
}

// SignJWT issues an HS256 token for userID bound to sessionID.
func SignJWT(userID, sessionID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":        userID,
		"user_id":    userID,
		"session_id": sessionID,
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseJWT verifies tok with secret. Only HS256 is accepted and both exp and
// iat must be present.
func ParseJWT(tok string, secret []byte) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if _, ok := claims["iat"]; !ok {
		return nil, fmt.Errorf("%w: iat", jwt.ErrTokenRequiredClaimMissing)
	}
	return claims, nil
}

// SessionID picks the session identifier from claims, trying session_id,
// data.session_id, sid and sub in that order.
func SessionID(claims jwt.MapClaims) string {
	if s, ok := claims["session_id"].(string); ok && s != "" {
		return s
	}
	if data, ok := claims["data"].(map[string]interface{}); ok {
		if s, ok := data["session_id"].(string); ok && s != "" {
			return s
		}
	}
	for _, key := range []string{"sid", "sub"} {
		if s, ok := claims[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// TokenExpired decodes tok without verifying it and reports whether exp has
// passed. Undecodable tokens and tokens without exp count as expired.
func TokenExpired(tok string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return !time.Now().Before(exp.Time)
}

// EchoAuthMiddleware builds an Echo middleware that validates JWT tokens from Authorization header or auth cookie.
func EchoAuthMiddleware(secret []byte, cookieName string) echo.MiddlewareFunc {
	if cookieName == "" {
		cookieName = "auth"
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := extractToken(c, cookieName)
			if tok == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			claims, err := ParseJWT(tok, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			sub, _ := claims["sub"].(string)
			if sub == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			session := SessionID(claims)
			reqCtx := ContextWithSubject(c.Request().Context(), sub)
			reqCtx = context.WithValue(reqCtx, sessionKey{}, session)
			c.Set("user_id", sub)
			c.Set("session_id", session)
			c.SetRequest(c.Request().WithContext(reqCtx))
			return next(c)
		}
	}
}

func extractToken(c echo.Context, cookieName string) string {
	if h := c.Request().Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if ck, err := c.Cookie(cookieName); err == nil {
		return ck.Value
	}
	return ""
}

// ContextWithSubject helper stores subject in context.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

type subjectKey struct{}

type sessionKey struct{}

// SubjectFromContext returns the JWT subject if stored in context via middleware.
func SubjectFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v := ctx.Value(subjectKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

// SessionFromContext returns the session id stored by the middleware.
func SessionFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	s, ok := ctx.Value(sessionKey{}).(string)
	return s, ok && s != ""
}
