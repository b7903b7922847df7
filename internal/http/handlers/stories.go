package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/microtales/microtales/internal/config"
	"github.com/microtales/microtales/internal/domain/job"
	"github.com/microtales/microtales/internal/domain/story"
	"github.com/microtales/microtales/internal/http/middlewares"
	"github.com/microtales/microtales/internal/jobs"
	"github.com/microtales/microtales/internal/utils"
	"github.com/microtales/microtales/internal/view"
)

type StoriesRepository interface {
	Create(ctx context.Context, s story.Story) (story.Story, error)
	GetByID(ctx context.Context, id string) (story.Story, error)
	ListPublic(ctx context.Context, filter story.ListFilter) ([]story.Story, int, error)
	Update(ctx context.Context, id string, req story.UpdateStoryRequest) (story.Story, error)
	Claim(ctx context.Context, id, authorID string) (story.Story, error)
	Delete(ctx context.Context, id string) error
}

type JobsEnqueuer interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

// CacheInvalidator drops author-listing keys after writes. A nil-safe
// wrapper is installed when redis is not configured.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

type StoriesHandler struct {
	repo     StoriesRepository
	jobsRepo JobsEnqueuer
	cache    CacheInvalidator
}

func NewStoriesHandler(repo StoriesRepository, jobsRepo JobsEnqueuer, cache CacheInvalidator) *StoriesHandler {
	return &StoriesHandler{
		repo:     repo,
		jobsRepo: jobsRepo,
		cache:    cache,
	}
}

func (h *StoriesHandler) GetStory(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid story id", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	s, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			RespondNotFound(ctx, "Story not found")
			return
		}
		RespondInternal(ctx, "Could not fetch story")
		return
	}

	sess := middlewares.SessionFromContext(ctx)

	// private stories are members-only, but any member may read them
	if !s.IsPublic && sess == nil {
		RespondUnauthorized(ctx, "unauthorized", "Sign in to read this story")
		return
	}

	RespondData(ctx, http.StatusOK, s)
}

func (h *StoriesHandler) BrowseStories(ctx *gin.Context) {
	filter := story.ListFilter{
		Limit:  parseIntDefault(ctx.Query("limit"), 20),
		Offset: parseIntDefault(ctx.Query("offset"), 0),
	}

	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	if g := ctx.Query("genre"); g != "" {
		filter.Genre = &g
	}
	if q := ctx.Query("q"); q != "" {
		filter.Query = &q
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	stories, total, err := h.repo.ListPublic(cctx, filter)

	if err != nil {
		RespondInternal(ctx, "Could not list stories")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"items":  stories,
			"total":  total,
			"limit":  filter.Limit,
			"offset": filter.Offset,
		},
	})
}

func (h *StoriesHandler) CreateStory(ctx *gin.Context) {
	var req story.CreateStoryRequest

	if !BindJSON(ctx, &req) {
		return
	}

	sess := middlewares.SessionFromContext(ctx)

	var authorID *string
	if sess != nil {
		authorID = &sess.UserID
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	created, err := h.repo.Create(cctx, story.NewFromCreateRequest(req, authorID))

	if err != nil {
		RespondInternal(ctx, "Could not create story")
		return
	}

	if authorID != nil {
		h.invalidateAuthorListing(ctx, *authorID)
	}

	RespondData(ctx, http.StatusCreated, created)
}

func (h *StoriesHandler) UpdateStory(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid story id", nil)
		return
	}

	var req story.UpdateStoryRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	current, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			RespondNotFound(ctx, "Story not found")
			return
		}
		RespondInternal(ctx, "Could not fetch story")
		return
	}

	sess := middlewares.SessionFromContext(ctx)
	if !view.CanEdit(sess, current) {
		RespondForbidden(ctx, "You cannot edit this story")
		return
	}

	updated, err := h.repo.Update(cctx, id, req)

	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			RespondNotFound(ctx, "Story not found")
			return
		}
		RespondInternal(ctx, "Could not update story")
		return
	}

	if updated.AuthorID != nil {
		h.invalidateAuthorListing(ctx, *updated.AuthorID)
	}

	RespondData(ctx, http.StatusOK, updated)
}

// DeleteStory is admin-only (enforced in the router). The author's
// cached listing is dropped so their profile stops showing the story
// immediately.
func (h *StoriesHandler) DeleteStory(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid story id", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	s, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			RespondNotFound(ctx, "Story not found")
			return
		}
		RespondInternal(ctx, "Could not fetch story")
		return
	}

	if err := h.repo.Delete(cctx, id); err != nil {
		if errors.Is(err, story.ErrNotFound) {
			RespondNotFound(ctx, "Story not found")
			return
		}
		RespondInternal(ctx, "Could not delete story")
		return
	}

	if s.AuthorID != nil {
		h.invalidateAuthorListing(ctx, *s.AuthorID)
		h.enqueueStoryDeleted(ctx, s)
	}

	RespondMessage(ctx, http.StatusOK, "Story deleted")
}

// ClaimStory attaches an unowned story to the signed-in viewer. The
// conditional UPDATE in the repo makes concurrent claims race-safe; the
// loser gets a conflict.
func (h *StoriesHandler) ClaimStory(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid story id", nil)
		return
	}

	sess := middlewares.SessionFromContext(ctx)
	if sess == nil {
		RespondUnauthorized(ctx, "unauthorized", "Sign in to claim a story")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	claimed, err := h.repo.Claim(cctx, id, sess.UserID)

	if err != nil {
		switch {
		case errors.Is(err, story.ErrNotFound):
			RespondNotFound(ctx, "Story not found")
		case errors.Is(err, story.ErrAlreadyClaimed):
			RespondConflict(ctx, "already_claimed", "This story already has an author.")
		default:
			RespondInternal(ctx, "Could not claim story")
		}
		return
	}

	h.invalidateAuthorListing(ctx, sess.UserID)
	h.enqueueClaimConfirmation(ctx, claimed, sess.UserID)

	RespondData(ctx, http.StatusOK, claimed)
}

// ClaimCallback finishes the sign-in-then-claim flow. The story token
// carried through the login redirect is the story id; the claim result
// lands the viewer on the story page either way.
func (h *StoriesHandler) ClaimCallback(ctx *gin.Context) {
	token := ctx.Query("storyToken")

	if !utils.IsUUID(token) {
		ctx.Redirect(http.StatusFound, "/")
		return
	}

	sess := middlewares.SessionFromContext(ctx)
	if sess == nil {
		ctx.Redirect(http.StatusFound, "/login?storyToken="+token)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	claimed, err := h.repo.Claim(cctx, token, sess.UserID)

	if err != nil {
		switch {
		case errors.Is(err, story.ErrNotFound):
			ctx.Redirect(http.StatusFound, "/")
		case errors.Is(err, story.ErrAlreadyClaimed):
			ctx.Redirect(http.StatusFound, "/stories/"+token+"?code=already_claimed")
		default:
			ctx.Redirect(http.StatusFound, "/stories/"+token+"?code=claim_failed")
		}
		return
	}

	h.invalidateAuthorListing(ctx, sess.UserID)
	h.enqueueClaimConfirmation(ctx, claimed, sess.UserID)

	ctx.Redirect(http.StatusFound, "/stories/"+token)
}

// enqueue helpers; failures are logged, never surfaced. The action
// already succeeded and the notification is best-effort.

func (h *StoriesHandler) enqueueClaimConfirmation(ctx *gin.Context, s story.Story, userID string) {
	if h.jobsRepo == nil {
		return
	}

	payload, err := jobs.EncodePayload(jobs.JobClaimConfirmation, jobs.ClaimConfirmationPayload{
		StoryID:     s.ID,
		UserID:      userID,
		StoryTitle:  s.Title,
		RequestedAt: time.Now().UTC(),
		RequestID:   requestIDFrom(ctx),
	})
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "encode claim job", "error", err)
		return
	}

	h.enqueue(ctx, string(jobs.JobClaimConfirmation), payload, "claim:"+s.ID, &userID)
}

func (h *StoriesHandler) enqueueStoryDeleted(ctx *gin.Context, s story.Story) {
	if h.jobsRepo == nil || s.AuthorID == nil {
		return
	}

	deletedBy := ""
	if sess := middlewares.SessionFromContext(ctx); sess != nil {
		deletedBy = sess.UserID
	}

	payload, err := jobs.EncodePayload(jobs.JobStoryDeleted, jobs.StoryDeletedPayload{
		StoryID:    s.ID,
		AuthorID:   *s.AuthorID,
		StoryTitle: s.Title,
		DeletedBy:  deletedBy,
		DeletedAt:  time.Now().UTC(),
	})
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "encode delete job", "error", err)
		return
	}

	h.enqueue(ctx, string(jobs.JobStoryDeleted), payload, "deleted:"+s.ID, s.AuthorID)
}

func (h *StoriesHandler) enqueue(ctx *gin.Context, jobType string, payload json.RawMessage, idemKey string, userID *string) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	_, err := h.jobsRepo.Create(cctx, job.CreateRequest{
		Type:           jobType,
		Payload:        payload,
		IdempotencyKey: &idemKey,
		UserID:         userID,
	})
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "enqueue job", "type", jobType, "error", err)
	}
}

func (h *StoriesHandler) invalidateAuthorListing(ctx *gin.Context, authorID string) {
	if h.cache == nil {
		return
	}

	cctx, cancel := config.WithTimeout(time.Second)
	defer cancel()

	if err := h.cache.Invalidate(cctx, utils.AuthorStoriesCacheKey(authorID)); err != nil {
		slog.Default().WarnContext(ctx.Request.Context(), "cache invalidate failed", "author_id", authorID, "error", err)
	}
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}

	return n
}
