package view

import (
	"github.com/microtales/microtales/internal/domain/story"
	"github.com/microtales/microtales/internal/session"
)

// Terminal states for the story page. Exactly one of the bools in
// StoryPageModel is set when the page cannot show content.
type StoryPageModel struct {
	NotFound       bool
	SignInRequired bool

	Story    story.Story
	MyRating float64

	CanEdit   bool
	CanDelete bool
	CanClaim  bool
}

// StoryPage builds the story detail view model. Private stories are
// readable by any signed-in user; anonymous viewers get a sign-in
// prompt instead of a 404 so the link stays shareable.
func StoryPage(sess *session.Session, s *story.Story, myRating float64) StoryPageModel {
	if s == nil {
		return StoryPageModel{NotFound: true}
	}

	if !s.IsPublic && sess == nil {
		return StoryPageModel{SignInRequired: true}
	}

	return StoryPageModel{
		Story:     *s,
		MyRating:  myRating,
		CanEdit:   CanEdit(sess, *s),
		CanDelete: CanDelete(sess),
		CanClaim:  CanClaim(*s),
	}
}
