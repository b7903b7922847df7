package story

import (
	"time"

	"github.com/google/uuid"
)

// NewFromCreateRequest builds a Story from the submission DTO. A nil authorID
// produces an unclaimed guest story.
func NewFromCreateRequest(req CreateStoryRequest, authorID *string) Story {
	now := time.Now().UTC()

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	return Story{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Content:     req.Content,
		Genre:       req.Genre,
		ReadingTime: req.ReadingTime,
		IsPublic:    isPublic,
		IsGuest:     authorID == nil,
		AuthorID:    authorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
