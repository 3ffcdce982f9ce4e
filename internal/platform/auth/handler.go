package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// User is an account allowed to sign in.
type User struct {
	ID       string   `json:"id"`
	Name     string   `json:"nome"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	password string
}

// NewUser builds a login account. Username and email both identify it.
func NewUser(username, email, name, password string, roles ...string) User {
	return User{ID: username, Name: name, Email: email, Roles: roles, password: password}
}

func (u User) matches(login, password string) bool {
	login = strings.TrimSpace(login)
	idOK := strings.EqualFold(login, u.ID) || (u.Email != "" && strings.EqualFold(login, u.Email))
	pwOK := subtle.ConstantTimeCompare([]byte(password), []byte(u.password)) == 1
	return idOK && pwOK && u.password != ""
}

type Handler struct {
	issuer *TokenIssuer
	users  []User
}

func NewHandler(issuer *TokenIssuer, users ...User) *Handler {
	return &Handler{issuer: issuer, users: users}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth")
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout)
	g.GET("/verify", h.Verify)
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	login := req.Username
	if login == "" {
		login = req.Email
	}
	if login == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	for _, u := range h.users {
		if u.matches(login, req.Password) {
			token, claims, err := h.issuer.Issue(u)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "could not issue token").SetInternal(err)
			}
			return c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: u})
		}
	}
	return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
}

func (h *Handler) Logout(c echo.Context) error {
	h.issuer.Revoke(ClaimsFromContext(c.Request().Context()))
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Verify(c echo.Context) error {
	claims := ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return c.JSON(http.StatusOK, User{
		ID:    claims.Subject,
		Name:  claims.Name,
		Email: claims.Email,
		Roles: claims.Roles,
	})
}
