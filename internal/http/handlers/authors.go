package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/microtales/microtales/internal/cache/redis"
	"github.com/microtales/microtales/internal/config"
	"github.com/microtales/microtales/internal/domain/story"
	"github.com/microtales/microtales/internal/domain/user"
	"github.com/microtales/microtales/internal/observability"
	"github.com/microtales/microtales/internal/utils"
	"github.com/microtales/microtales/internal/view"
)

type AuthorReader interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type AuthorStoriesLister interface {
	ListByAuthor(ctx context.Context, authorID string) ([]story.Story, error)
}

type ListingCache interface {
	GetJSON(ctx context.Context, key string, out any) error
	SetJSON(ctx context.Context, key string, val any) error
}

type AuthorsHandler struct {
	users   AuthorReader
	stories AuthorStoriesLister
	cache   ListingCache
	prom    *observability.Prom
}

func NewAuthorsHandler(users AuthorReader, stories AuthorStoriesLister, cache ListingCache, prom *observability.Prom) *AuthorsHandler {
	return &AuthorsHandler{
		users:   users,
		stories: stories,
		cache:   cache,
		prom:    prom,
	}
}

func (h *AuthorsHandler) GetAuthor(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid author id", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "Author not found")
			return
		}
		RespondInternal(ctx, "Could not fetch author")
		return
	}

	stories, err := h.listStories(cctx, ctx, id)
	if err != nil {
		RespondInternal(ctx, "Could not fetch author stories")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"author":        u.Profile(),
			"storyCount":    len(stories),
			"averageRating": view.AverageRating(stories),
		},
	})
}

func (h *AuthorsHandler) GetAuthorStories(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid author id", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	stories, err := h.listStories(cctx, ctx, id)

	if err != nil {
		RespondInternal(ctx, "Could not fetch author stories")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"items": stories,
			"count": len(stories),
		},
	})
}

// listStories serves the author listing through the redis cache. Cache
// trouble degrades to a direct read, never an error.
func (h *AuthorsHandler) listStories(cctx context.Context, ctx *gin.Context, authorID string) ([]story.Story, error) {
	if h.cache == nil {
		return h.stories.ListByAuthor(cctx, authorID)
	}

	key := utils.AuthorStoriesCacheKey(authorID)

	var cached []story.Story
	err := h.cache.GetJSON(cctx, key, &cached)

	if err == nil {
		if h.prom != nil {
			h.prom.CacheHits.WithLabelValues("author_stories").Inc()
		}
		return cached, nil
	}

	if !errors.Is(err, redis.ErrMiss) {
		slog.Default().WarnContext(ctx.Request.Context(), "cache read failed", "key", key, "error", err)
	}

	if h.prom != nil {
		h.prom.CacheMisses.WithLabelValues("author_stories").Inc()
	}

	stories, err := h.stories.ListByAuthor(cctx, authorID)
	if err != nil {
		return nil, err
	}

	if err := h.cache.SetJSON(cctx, key, stories); err != nil {
		slog.Default().WarnContext(ctx.Request.Context(), "cache write failed", "key", key, "error", err)
	}

	return stories, nil
}
