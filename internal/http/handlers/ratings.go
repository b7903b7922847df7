package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/microtales/microtales/internal/config"
	"github.com/microtales/microtales/internal/domain/rating"
	"github.com/microtales/microtales/internal/domain/story"
	"github.com/microtales/microtales/internal/http/middlewares"
	"github.com/microtales/microtales/internal/utils"
)

type RatingsRepository interface {
	GetUserStoryRating(ctx context.Context, userID, storyID string) (*float64, error)
	Upsert(ctx context.Context, userID, storyID string, score float64) error
}

type StoryReader interface {
	GetByID(ctx context.Context, id string) (story.Story, error)
}

type RatingsHandler struct {
	ratings RatingsRepository
	stories StoryReader
}

func NewRatingsHandler(ratings RatingsRepository, stories StoryReader) *RatingsHandler {
	return &RatingsHandler{
		ratings: ratings,
		stories: stories,
	}
}

// GetMyRating returns the viewer's score for a story, zero when they
// have not rated it. The widget treats zero as "no stars yet".
func (h *RatingsHandler) GetMyRating(ctx *gin.Context) {
	storyID := ctx.Param("id")
	if !utils.IsUUID(storyID) {
		RespondBadRequest(ctx, "Invalid story id", nil)
		return
	}

	sess := middlewares.SessionFromContext(ctx)
	if sess == nil {
		RespondUnauthorized(ctx, "unauthorized", "Sign in to see your rating")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	score, err := h.ratings.GetUserStoryRating(cctx, sess.UserID, storyID)

	if err != nil {
		RespondInternal(ctx, "Could not fetch rating")
		return
	}

	var value float64
	if score != nil {
		value = *score
	}

	RespondData(ctx, http.StatusOK, gin.H{
		"storyId": storyID,
		"score":   value,
	})
}

func (h *RatingsHandler) RateStory(ctx *gin.Context) {
	storyID := ctx.Param("id")
	if !utils.IsUUID(storyID) {
		RespondBadRequest(ctx, "Invalid story id", nil)
		return
	}

	sess := middlewares.SessionFromContext(ctx)
	if sess == nil {
		RespondUnauthorized(ctx, "unauthorized", "Sign in to rate stories")
		return
	}

	var req rating.RateStoryRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// the story has to exist before we accept a score for it
	if _, err := h.stories.GetByID(cctx, storyID); err != nil {
		if errors.Is(err, story.ErrNotFound) {
			RespondNotFound(ctx, "Story not found")
			return
		}
		RespondInternal(ctx, "Could not fetch story")
		return
	}

	if err := h.ratings.Upsert(cctx, sess.UserID, storyID, req.Score); err != nil {
		RespondInternal(ctx, "Could not save rating")
		return
	}

	// re-read so the response carries the fresh aggregate
	s, err := h.stories.GetByID(cctx, storyID)
	if err != nil {
		RespondInternal(ctx, "Could not fetch story")
		return
	}

	RespondData(ctx, http.StatusOK, gin.H{
		"storyId": storyID,
		"score":   req.Score,
		"rating":  s.Rating,
	})
}
