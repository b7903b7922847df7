package view

import "github.com/microtales/microtales/internal/session"

type NavLink struct {
	Label string
	Href  string
}

type HeaderModel struct {
	SignedIn bool
	Name     string
	UserID   string
	IsAdmin  bool

	Links []NavLink
}

// Header builds the shared nav bar. Anonymous visitors get sign-in and
// sign-up buttons; signed-in users get their profile menu instead.
func Header(sess *session.Session) HeaderModel {
	links := []NavLink{
		{Label: "Browse", Href: "/"},
	}

	if sess == nil {
		return HeaderModel{Links: links}
	}

	return HeaderModel{
		SignedIn: true,
		Name:     sess.Name,
		UserID:   sess.UserID,
		IsAdmin:  sess.IsAdmin(),
		Links:    append(links, NavLink{Label: "My stories", Href: "/authors/" + sess.UserID}),
	}
}
