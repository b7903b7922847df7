package story

import (
	"errors"
	"time"
)

const (
	GenreAdventure      = "adventure"
	GenreFantasy        = "fantasy"
	GenreHorror         = "horror"
	GenreScienceFiction = "science_fiction"
	GenreMystery        = "mystery"
	GenreRomance        = "romance"
)

var (
	ErrNotFound       = errors.New("story not found")
	ErrAlreadyClaimed = errors.New("story already has an author")
)

type Story struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Genre       string    `json:"genre"`
	Rating      *float64  `json:"rating,omitempty"` // aggregate across all raters, nil when unrated
	ReadingTime int       `json:"readingTime"`      // minutes
	IsPublic    bool      `json:"isPublic"`
	IsGuest     bool      `json:"isGuest"`
	AuthorID    *string   `json:"authorId,omitempty"` // nil means unclaimed guest story
	AuthorName  string    `json:"authorName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Claimed reports whether the story belongs to an account.
func (s Story) Claimed() bool {
	return s.AuthorID != nil && *s.AuthorID != ""
}

type ListFilter struct {
	Genre  *string
	Query  *string
	Limit  int
	Offset int
}

type CreateStoryRequest struct {
	Title       string `json:"title" binding:"required,min=3,max=160"`
	Content     string `json:"content" binding:"required,min=10"`
	Genre       string `json:"genre" binding:"required,oneof=adventure fantasy horror science_fiction mystery romance"`
	ReadingTime int    `json:"readingTime" binding:"required,min=1,max=120"`
	IsPublic    *bool  `json:"isPublic" binding:"required"`
}

type UpdateStoryRequest struct {
	Title       string `json:"title" binding:"required,min=3,max=160"`
	Content     string `json:"content" binding:"required,min=10"`
	Genre       string `json:"genre" binding:"required,oneof=adventure fantasy horror science_fiction mystery romance"`
	ReadingTime int    `json:"readingTime" binding:"required,min=1,max=120"`
	IsPublic    *bool  `json:"isPublic" binding:"required"`
}
