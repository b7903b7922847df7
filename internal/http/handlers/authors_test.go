package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/microtales/microtales/internal/cache/redis"
	"github.com/microtales/microtales/internal/domain/story"
	"github.com/microtales/microtales/internal/domain/user"
	"github.com/microtales/microtales/internal/http/handlers"
)

type fakeAuthorReader struct {
	getFn func(ctx context.Context, id string) (user.User, error)
}

func (f *fakeAuthorReader) GetByID(ctx context.Context, id string) (user.User, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return user.User{}, user.ErrNotFound
}

type fakeAuthorStories struct {
	listCalls int
	stories   []story.Story
}

func (f *fakeAuthorStories) ListByAuthor(_ context.Context, _ string) ([]story.Story, error) {
	f.listCalls++
	return f.stories, nil
}

// fakeListingCache keeps the redis contract: ErrMiss on absent keys.
type fakeListingCache struct {
	store map[string][]byte
}

func newFakeListingCache() *fakeListingCache {
	return &fakeListingCache{store: make(map[string][]byte)}
}

func (f *fakeListingCache) GetJSON(_ context.Context, key string, out any) error {
	b, ok := f.store[key]
	if !ok {
		return redis.ErrMiss
	}
	return json.Unmarshal(b, out)
}

func (f *fakeListingCache) SetJSON(_ context.Context, key string, val any) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	f.store[key] = b
	return nil
}

func setupAuthorsRouter(h *handlers.AuthorsHandler) *gin.Engine {
	r := gin.New()
	r.GET("/api/authors/:id", h.GetAuthor)
	r.GET("/api/authors/:id/stories", h.GetAuthorStories)
	return r
}

func TestGetAuthor_ProfileShape(t *testing.T) {
	authorID := newUUID()
	joined := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	users := &fakeAuthorReader{
		getFn: func(_ context.Context, id string) (user.User, error) {
			return user.User{
				ID:           id,
				Name:         "Jane",
				Email:        "jane@example.com",
				PasswordHash: "secret-hash",
				Role:         user.RoleAuthor,
				CreatedAt:    joined,
			}, nil
		},
	}

	r3, r5 := 3.0, 5.0
	stories := &fakeAuthorStories{stories: []story.Story{
		{ID: newUUID(), Rating: &r3},
		{ID: newUUID(), Rating: &r5},
		{ID: newUUID()},
	}}

	h := handlers.NewAuthorsHandler(users, stories, nil, nil)
	r := setupAuthorsRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/authors/"+authorID, nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var body struct {
		Data struct {
			Author        map[string]any `json:"author"`
			StoryCount    int            `json:"storyCount"`
			AverageRating float64        `json:"averageRating"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body.Data.StoryCount != 3 {
		t.Fatalf("storyCount = %d, want 3", body.Data.StoryCount)
	}
	if body.Data.AverageRating != 4.0 {
		t.Fatalf("averageRating = %v, want 4.0", body.Data.AverageRating)
	}

	// public profile only; no credentials leak
	if _, ok := body.Data.Author["email"]; ok {
		t.Fatalf("author payload leaks email: %v", body.Data.Author)
	}
	if _, ok := body.Data.Author["passwordHash"]; ok {
		t.Fatalf("author payload leaks password hash: %v", body.Data.Author)
	}
}

func TestGetAuthor_NotFound(t *testing.T) {
	h := handlers.NewAuthorsHandler(&fakeAuthorReader{}, &fakeAuthorStories{}, nil, nil)
	r := setupAuthorsRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/authors/"+newUUID(), nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetAuthorStories_CacheRoundTrip(t *testing.T) {
	authorID := newUUID()

	stories := &fakeAuthorStories{stories: []story.Story{
		{ID: newUUID(), Title: "Cached Tale", AuthorID: &authorID},
	}}
	cache := newFakeListingCache()

	h := handlers.NewAuthorsHandler(&fakeAuthorReader{}, stories, cache, nil)
	r := setupAuthorsRouter(h)

	// first request misses and fills the cache
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/authors/"+authorID+"/stories", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	if stories.listCalls != 1 {
		t.Fatalf("listCalls = %d, want 1", stories.listCalls)
	}

	// second request is served from the cache
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/authors/"+authorID+"/stories", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if stories.listCalls != 1 {
		t.Fatalf("listCalls = %d after cached request, want 1", stories.listCalls)
	}
}
