package notifications

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

// simulate a slow or broken delivery provider via env, useful for
// exercising the circuit breaker locally.
func simulateProvider(ctx context.Context) error {
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}

	return nil
}

func (n *LogNotifier) SendClaimConfirmation(ctx context.Context, in SendClaimConfirmationInput) error {
	if err := simulateProvider(ctx); err != nil {
		return err
	}

	log.Printf("notification.claim_confirmation email=%s name=%s story=%s title=%q",
		in.Email, in.Name, in.StoryID, in.StoryTitle,
	)
	return nil
}

func (n *LogNotifier) SendStoryDeleted(ctx context.Context, in SendStoryDeletedInput) error {
	if err := simulateProvider(ctx); err != nil {
		return err
	}

	log.Printf("notification.story_deleted email=%s name=%s story=%s title=%q deletedBy=%s",
		in.Email, in.Name, in.StoryID, in.StoryTitle, in.DeletedBy,
	)
	return nil
}
