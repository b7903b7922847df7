package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/microtales/microtales/internal/session"
)

type SessionMiddleware struct {
	resolver *session.Resolver
}

func NewSessionMiddleware(resolver *session.Resolver) *SessionMiddleware {
	return &SessionMiddleware{resolver: resolver}
}

// ResolveSession attaches the viewer's session to the request context when a
// valid credential is present. It never rejects; pages and optional-auth
// endpoints treat a missing session as an anonymous viewer.
func (m *SessionMiddleware) ResolveSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, _ := c.Cookie(session.CookieName)

		if sess := m.resolver.Resolve(c.GetHeader("Authorization"), cookie); sess != nil {
			c.Set(CtxSession, sess)
		}

		c.Next()
	}
}

// RequireAuth aborts with 401 when no session was resolved.
func (m *SessionMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if SessionFromContext(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing or invalid access token",
				},
			})
			return
		}
		c.Next()
	}
}

func (m *SessionMiddleware) RequireRole(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := SessionFromContext(c)

		if sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing identity context",
				},
			})
			return
		}
		if sess.Role != required {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "Admin role required",
				},
			})
			return
		}
		c.Next()
	}
}

// Helpers so handlers don't need to know the magic keys.

func SessionFromContext(c *gin.Context) *session.Session {
	v, ok := c.Get(CtxSession)
	if !ok {
		return nil
	}
	sess, ok := v.(*session.Session)
	if !ok {
		return nil
	}
	return sess
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	sess := SessionFromContext(c)
	if sess == nil {
		return "", false
	}
	return sess.UserID, true
}
