package jobs

import "time"

// ClaimConfirmationPayload notifies a user that a guest story is now theirs.
// Keep payloads minimal and ID-based; the worker loads details from the DB.
type ClaimConfirmationPayload struct {
	StoryID     string    `json:"storyId"`
	UserID      string    `json:"userId"`
	StoryTitle  string    `json:"storyTitle"`
	RequestedAt time.Time `json:"requestedAt"`
	RequestID   string    `json:"requestId,omitempty"` // correlation
}

// StoryDeletedPayload notifies a story's author about an admin deletion.
type StoryDeletedPayload struct {
	StoryID    string    `json:"storyId"`
	AuthorID   string    `json:"authorId"`
	StoryTitle string    `json:"storyTitle"`
	DeletedBy  string    `json:"deletedBy"`
	DeletedAt  time.Time `json:"deletedAt"`
}
