package view

import (
	"github.com/microtales/microtales/internal/domain/story"
	"github.com/microtales/microtales/internal/session"
)

// CanEdit allows admins and the story's owner.
func CanEdit(sess *session.Session, s story.Story) bool {
	if sess == nil {
		return false
	}
	if sess.IsAdmin() {
		return true
	}
	return s.AuthorID != nil && *s.AuthorID == sess.UserID
}

// CanDelete is admin-only regardless of ownership.
func CanDelete(sess *session.Session) bool {
	return sess.IsAdmin()
}

// CanClaim reports whether the story is still unowned. Deliberately
// independent of any session; the claim endpoint enforces sign-in.
func CanClaim(s story.Story) bool {
	return !s.Claimed()
}
