package notifications

import "context"

type SendClaimConfirmationInput struct {
	Email      string
	Name       string
	StoryID    string
	StoryTitle string
}

type SendStoryDeletedInput struct {
	Email      string
	Name       string
	StoryID    string
	StoryTitle string
	DeletedBy  string
}

type Notifier interface {
	SendClaimConfirmation(ctx context.Context, input SendClaimConfirmationInput) error
	SendStoryDeleted(ctx context.Context, input SendStoryDeletedInput) error
}
