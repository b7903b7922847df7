package rating

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("rating not found")

// Rating is one user's score for one story. At most one row per (user, story);
// the unique constraint lives in the database.
type Rating struct {
	UserID    string    `json:"userId"`
	StoryID   string    `json:"storyId"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type RateStoryRequest struct {
	Score float64 `json:"score" binding:"required,min=1,max=5"`
}
