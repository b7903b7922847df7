package view

import (
	"math"

	"github.com/microtales/microtales/internal/domain/story"
	"github.com/microtales/microtales/internal/domain/user"
)

type AuthorPageModel struct {
	NotFound bool

	Author        user.Profile
	Stories       []story.Story
	StoryCount    int
	AverageRating float64
}

// AuthorPage builds the author profile view model.
func AuthorPage(author *user.User, stories []story.Story) AuthorPageModel {
	if author == nil {
		return AuthorPageModel{NotFound: true}
	}

	return AuthorPageModel{
		Author:        author.Profile(),
		Stories:       stories,
		StoryCount:    len(stories),
		AverageRating: AverageRating(stories),
	}
}

// AverageRating is the mean of the rated stories only. Unrated stories
// (nil or zero aggregate) do not drag the average down; the result is
// rounded to one decimal place, 0 when nothing qualifies.
func AverageRating(stories []story.Story) float64 {
	var sum float64
	var n int

	for _, s := range stories {
		if s.Rating == nil || *s.Rating <= 0 {
			continue
		}
		sum += *s.Rating
		n++
	}

	if n == 0 {
		return 0
	}

	return math.Round(sum/float64(n)*10) / 10
}
