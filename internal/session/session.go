package session

import (
	"strings"

	"github.com/microtales/microtales/internal/auth"
	"github.com/microtales/microtales/internal/domain/user"
)

// CookieName carries the access token for server-rendered pages. API clients
// send the same token as a Bearer header instead.
const CookieName = "mt_session"

// Session is the authenticated-identity capability for one request. It is an
// immutable value passed explicitly into view construction; a nil *Session
// means "no session", never an error.
type Session struct {
	UserID string
	Name   string
	Role   string
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == user.RoleAdmin
}

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type Resolver struct {
	jwt TokenVerifier
}

func NewResolver(jwt TokenVerifier) *Resolver {
	return &Resolver{jwt: jwt}
}

// Resolve turns a raw credential into a session. Invalid, expired or absent
// credentials all yield nil; failure is not signaled.
func (r *Resolver) Resolve(authHeader, cookie string) *Session {
	raw := tokenFrom(authHeader, cookie)

	if raw == "" {
		return nil
	}

	claims, err := r.jwt.VerifyAccessToken(raw)

	if err != nil {
		return nil
	}

	return &Session{
		UserID: claims.UserID,
		Name:   claims.Name,
		Role:   claims.Role,
	}
}

func tokenFrom(authHeader, cookie string) string {
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	}

	return strings.TrimSpace(cookie)
}
