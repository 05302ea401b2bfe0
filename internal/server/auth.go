package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/agile-athletes/lrps/internal/runtime"
)

// AuthHandler logs in the accounts configured under auth.users.
type AuthHandler struct {
	Users      map[string]string
	Secret     []byte
	TTL        time.Duration
	CookieName string
	Secure     bool
	Logger     *zap.Logger
}

func (a *AuthHandler) Register(g *echo.Group) {
	g.POST("/login", a.login)
	g.POST("/logout", a.logout)
}

// login checks the bcrypt hash and issues a JWT bound to a fresh session,
// set as cookie and returned for Bearer flows.
func (a *AuthHandler) login(c echo.Context) error {
	var req AuthLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password required")
	}
	hash, ok := a.Users[email]
	if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		a.Logger.Info("login rejected", zap.String("email", email))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	session := uuid.NewString()
	signed, err := runtime.SignJWT(email, session, a.Secret, a.TTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.SetCookie(&http.Cookie{
		Name:     a.CookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(a.TTL / time.Second),
	})
	c.Response().Header().Set("Authorization", "Bearer "+signed)
	return c.JSON(http.StatusOK, TokenResponse{Token: signed, SessionID: session})
}

func (a *AuthHandler) logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{Name: a.CookieName, Value: "", Path: "/", MaxAge: -1})
	return c.NoContent(http.StatusOK)
}
