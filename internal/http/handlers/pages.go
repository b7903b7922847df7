package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/microtales/microtales/internal/cache"
	"github.com/microtales/microtales/internal/config"
	"github.com/microtales/microtales/internal/domain/story"
	"github.com/microtales/microtales/internal/domain/user"
	"github.com/microtales/microtales/internal/http/middlewares"
	"github.com/microtales/microtales/internal/observability"
	"github.com/microtales/microtales/internal/session"
	"github.com/microtales/microtales/internal/utils"
	"github.com/microtales/microtales/internal/view"
)

type PageStoriesRepo interface {
	GetByID(ctx context.Context, id string) (story.Story, error)
	ListPublic(ctx context.Context, filter story.ListFilter) ([]story.Story, int, error)
	ListByAuthor(ctx context.Context, authorID string) ([]story.Story, error)
}

type PageUsersRepo interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type PageRatingsRepo interface {
	GetUserStoryRating(ctx context.Context, userID, storyID string) (*float64, error)
}

// PagesHandler renders the server-side HTML views. It reuses the same
// repos the facade API uses; only the presentation differs.
type PagesHandler struct {
	stories PageStoriesRepo
	users   PageUsersRepo
	ratings PageRatingsRepo

	browseCache *cache.Cache
	prom        *observability.Prom
}

func NewPagesHandler(stories PageStoriesRepo, users PageUsersRepo, ratings PageRatingsRepo, browseCache *cache.Cache, prom *observability.Prom) *PagesHandler {
	return &PagesHandler{
		stories:     stories,
		users:       users,
		ratings:     ratings,
		browseCache: browseCache,
		prom:        prom,
	}
}

type browseListing struct {
	Stories []story.Story
	Total   int
}

// GET /
func (h *PagesHandler) Browse(ctx *gin.Context) {
	sess := middlewares.SessionFromContext(ctx)

	filter := story.ListFilter{Limit: 20}
	if g := ctx.Query("genre"); g != "" {
		filter.Genre = &g
	}
	filter.Offset = parseIntDefault(ctx.Query("offset"), 0)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	listing, err := h.browseListing(ctx, filter)
	if err != nil {
		ctx.HTML(http.StatusInternalServerError, "error.tmpl", gin.H{
			"Header":  view.Header(sess),
			"Message": "Something went wrong loading stories.",
		})
		return
	}

	ctx.HTML(http.StatusOK, "browse.tmpl", gin.H{
		"Header":  view.Header(sess),
		"Stories": listing.Stories,
		"Total":   listing.Total,
		"Genre":   ctx.Query("genre"),
	})
}

func (h *PagesHandler) browseListing(ctx *gin.Context, filter story.ListFilter) (browseListing, error) {
	key := utils.BrowseStoriesCacheKey(filter.Limit, filter.Offset, filter.Genre)

	if h.browseCache != nil {
		if v, ok := h.browseCache.Get(key); ok {
			if listing, ok := v.(browseListing); ok {
				if h.prom != nil {
					h.prom.CacheHits.WithLabelValues("browse").Inc()
				}
				return listing, nil
			}
		}
		if h.prom != nil {
			h.prom.CacheMisses.WithLabelValues("browse").Inc()
		}
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	stories, total, err := h.stories.ListPublic(cctx, filter)
	if err != nil {
		return browseListing{}, err
	}

	listing := browseListing{Stories: stories, Total: total}

	if h.browseCache != nil {
		h.browseCache.Set(key, listing)
	}

	return listing, nil
}

// GET /stories/:id
func (h *PagesHandler) StoryPage(ctx *gin.Context) {
	sess := middlewares.SessionFromContext(ctx)
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		h.renderStory(ctx, sess, view.StoryPage(sess, nil, 0))
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	s, err := h.stories.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			h.renderStory(ctx, sess, view.StoryPage(sess, nil, 0))
			return
		}
		ctx.HTML(http.StatusInternalServerError, "error.tmpl", gin.H{
			"Header":  view.Header(sess),
			"Message": "Something went wrong loading this story.",
		})
		return
	}

	var myRating float64
	if sess != nil {
		score, err := h.ratings.GetUserStoryRating(cctx, sess.UserID, id)
		if err != nil {
			slog.Default().WarnContext(ctx.Request.Context(), "load viewer rating", "story_id", id, "error", err)
		} else if score != nil {
			myRating = *score
		}
	}

	h.renderStory(ctx, sess, view.StoryPage(sess, &s, myRating))
}

func (h *PagesHandler) renderStory(ctx *gin.Context, sess *session.Session, m view.StoryPageModel) {
	header := view.Header(sess)

	switch {
	case m.NotFound:
		ctx.HTML(http.StatusNotFound, "story_not_found.tmpl", gin.H{"Header": header})
	case m.SignInRequired:
		// 200 with a sign-in CTA; the link stays shareable
		ctx.HTML(http.StatusOK, "story_sign_in.tmpl", gin.H{"Header": header})
	default:
		ctx.HTML(http.StatusOK, "story.tmpl", gin.H{
			"Header": header,
			"Model":  m,
		})
	}
}

// GET /authors/:id
func (h *PagesHandler) AuthorPage(ctx *gin.Context) {
	sess := middlewares.SessionFromContext(ctx)
	id := ctx.Param("id")

	header := view.Header(sess)

	if !utils.IsUUID(id) {
		ctx.HTML(http.StatusNotFound, "author_not_found.tmpl", gin.H{"Header": header})
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			ctx.HTML(http.StatusNotFound, "author_not_found.tmpl", gin.H{"Header": header})
			return
		}
		ctx.HTML(http.StatusInternalServerError, "error.tmpl", gin.H{
			"Header":  header,
			"Message": "Something went wrong loading this author.",
		})
		return
	}

	stories, err := h.stories.ListByAuthor(cctx, id)
	if err != nil {
		ctx.HTML(http.StatusInternalServerError, "error.tmpl", gin.H{
			"Header":  header,
			"Message": "Something went wrong loading this author.",
		})
		return
	}

	ctx.HTML(http.StatusOK, "author.tmpl", gin.H{
		"Header": header,
		"Model":  view.AuthorPage(&u, stories),
	})
}

// GET /login
func (h *PagesHandler) LoginPage(ctx *gin.Context) {
	sess := middlewares.SessionFromContext(ctx)

	// same-tab claim handoff: already signed in means go finish the claim
	if sess != nil {
		if tok := ctx.Query("storyToken"); tok != "" {
			ctx.Redirect(http.StatusFound, loginRedirect(sess.UserID, tok))
			return
		}
		ctx.Redirect(http.StatusFound, "/authors/"+sess.UserID)
		return
	}

	ctx.HTML(http.StatusOK, "login.tmpl", gin.H{
		"Header": view.Header(nil),
		"Model":  view.LoginPage(ctx.Query("code"), ctx.Query("storyToken")),
	})
}
