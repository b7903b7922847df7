package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/microtales/microtales/internal/domain/job"
	"github.com/microtales/microtales/internal/domain/story"
	"github.com/microtales/microtales/internal/domain/user"
	"github.com/microtales/microtales/internal/http/handlers"
	"github.com/microtales/microtales/internal/http/middlewares"
	"github.com/microtales/microtales/internal/session"
)

// Keep gin quiet during the tests
func init() {
	gin.SetMode(gin.TestMode)
}

func newUUID() string {
	return uuid.NewString()
}

func strPtr(s string) *string { return &s }

// Fake repository implementing handlers.StoriesRepository

type fakeStoriesRepo struct {
	createFn func(ctx context.Context, s story.Story) (story.Story, error)
	getFn    func(ctx context.Context, id string) (story.Story, error)
	listFn   func(ctx context.Context, filter story.ListFilter) ([]story.Story, int, error)
	updateFn func(ctx context.Context, id string, req story.UpdateStoryRequest) (story.Story, error)
	claimFn  func(ctx context.Context, id, authorID string) (story.Story, error)
	deleteFn func(ctx context.Context, id string) error
}

func (f *fakeStoriesRepo) Create(ctx context.Context, s story.Story) (story.Story, error) {
	if f.createFn != nil {
		return f.createFn(ctx, s)
	}
	return s, nil
}

func (f *fakeStoriesRepo) GetByID(ctx context.Context, id string) (story.Story, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return story.Story{}, nil
}

func (f *fakeStoriesRepo) ListPublic(ctx context.Context, filter story.ListFilter) ([]story.Story, int, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}
	return nil, 0, nil
}

func (f *fakeStoriesRepo) Update(ctx context.Context, id string, req story.UpdateStoryRequest) (story.Story, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, req)
	}
	return story.Story{}, nil
}

func (f *fakeStoriesRepo) Claim(ctx context.Context, id, authorID string) (story.Story, error) {
	if f.claimFn != nil {
		return f.claimFn(ctx, id, authorID)
	}
	return story.Story{}, nil
}

func (f *fakeStoriesRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeJobsRepo struct {
	created []job.CreateRequest
}

func (f *fakeJobsRepo) Create(_ context.Context, req job.CreateRequest) (job.Job, error) {
	f.created = append(f.created, req)
	return job.New(req), nil
}

type fakeInvalidator struct {
	keys []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, keys ...string) error {
	f.keys = append(f.keys, keys...)
	return nil
}

// setupStoriesRouter mounts the handler with an optional fixed session.
func setupStoriesRouter(h *handlers.StoriesHandler, sess *session.Session) *gin.Engine {
	r := gin.New()

	if sess != nil {
		r.Use(func(c *gin.Context) {
			c.Set(middlewares.CtxSession, sess)
			c.Next()
		})
	}

	r.GET("/claim/callback", h.ClaimCallback)
	r.GET("/api/stories/:id", h.GetStory)
	r.DELETE("/api/stories/:id", h.DeleteStory)
	r.POST("/api/stories/:id/claim", h.ClaimStory)
	r.POST("/api/stories", h.CreateStory)
	r.PUT("/api/stories/:id", h.UpdateStory)

	return r
}

func TestGetStory_PrivateVisibility(t *testing.T) {
	id := newUUID()
	private := story.Story{ID: id, Title: "Hidden", IsPublic: false}

	repo := &fakeStoriesRepo{
		getFn: func(_ context.Context, gotID string) (story.Story, error) {
			if gotID != id {
				return story.Story{}, story.ErrNotFound
			}
			return private, nil
		},
	}
	h := handlers.NewStoriesHandler(repo, nil, nil)

	tests := []struct {
		name       string
		sess       *session.Session
		wantStatus int
	}{
		{
			name:       "anonymous viewer is told to sign in",
			sess:       nil,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "any signed-in viewer may read",
			sess:       &session.Session{UserID: newUUID(), Role: user.RoleAuthor},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupStoriesRouter(h, tt.sess)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/stories/"+id, nil)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestGetStory_NotFound(t *testing.T) {
	repo := &fakeStoriesRepo{
		getFn: func(_ context.Context, _ string) (story.Story, error) {
			return story.Story{}, story.ErrNotFound
		},
	}
	h := handlers.NewStoriesHandler(repo, nil, nil)
	r := setupStoriesRouter(h, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stories/"+newUUID(), nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestDeleteStory_InvalidatesAuthorCache(t *testing.T) {
	storyID := newUUID()
	authorID := newUUID()

	repo := &fakeStoriesRepo{
		getFn: func(_ context.Context, _ string) (story.Story, error) {
			return story.Story{ID: storyID, Title: "Doomed", AuthorID: strPtr(authorID)}, nil
		},
	}
	jobsRepo := &fakeJobsRepo{}
	inv := &fakeInvalidator{}

	h := handlers.NewStoriesHandler(repo, jobsRepo, inv)
	admin := &session.Session{UserID: newUUID(), Role: user.RoleAdmin}
	r := setupStoriesRouter(h, admin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/stories/"+storyID, nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Success || body.Message != "Story deleted" {
		t.Fatalf("unexpected body: %+v", body)
	}

	if len(inv.keys) != 1 || inv.keys[0] != "stories:author:"+authorID+":v1" {
		t.Fatalf("cache keys invalidated = %v", inv.keys)
	}

	if len(jobsRepo.created) != 1 || jobsRepo.created[0].Type != "story.deleted" {
		t.Fatalf("expected one story.deleted job, got %+v", jobsRepo.created)
	}
}

func TestDeleteStory_RepoFailure(t *testing.T) {
	repo := &fakeStoriesRepo{
		getFn: func(_ context.Context, id string) (story.Story, error) {
			return story.Story{ID: id}, nil
		},
		deleteFn: func(_ context.Context, _ string) error {
			return context.DeadlineExceeded
		},
	}
	inv := &fakeInvalidator{}

	h := handlers.NewStoriesHandler(repo, nil, inv)
	admin := &session.Session{UserID: newUUID(), Role: user.RoleAdmin}
	r := setupStoriesRouter(h, admin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/stories/"+newUUID(), nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if len(inv.keys) != 0 {
		t.Fatalf("cache must not be touched on failure, got %v", inv.keys)
	}
}

func TestClaimStory(t *testing.T) {
	storyID := newUUID()
	viewerID := newUUID()

	tests := []struct {
		name       string
		sess       *session.Session
		claimFn    func(ctx context.Context, id, authorID string) (story.Story, error)
		wantStatus int
		wantJobs   int
	}{
		{
			name:       "anonymous claim is rejected",
			sess:       nil,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "successful claim enqueues confirmation",
			sess: &session.Session{UserID: viewerID, Role: user.RoleAuthor},
			claimFn: func(_ context.Context, id, authorID string) (story.Story, error) {
				return story.Story{ID: id, Title: "Mine now", AuthorID: &authorID}, nil
			},
			wantStatus: http.StatusOK,
			wantJobs:   1,
		},
		{
			name: "already claimed yields conflict",
			sess: &session.Session{UserID: viewerID, Role: user.RoleAuthor},
			claimFn: func(_ context.Context, _, _ string) (story.Story, error) {
				return story.Story{}, story.ErrAlreadyClaimed
			},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeStoriesRepo{claimFn: tt.claimFn}
			jobsRepo := &fakeJobsRepo{}

			h := handlers.NewStoriesHandler(repo, jobsRepo, nil)
			r := setupStoriesRouter(h, tt.sess)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/stories/"+storyID+"/claim", nil)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if len(jobsRepo.created) != tt.wantJobs {
				t.Fatalf("jobs created = %d, want %d", len(jobsRepo.created), tt.wantJobs)
			}
		})
	}
}

func TestClaimCallback(t *testing.T) {
	storyID := newUUID()
	viewerID := newUUID()

	t.Run("anonymous viewer bounces to login with the token", func(t *testing.T) {
		h := handlers.NewStoriesHandler(&fakeStoriesRepo{}, nil, nil)
		r := setupStoriesRouter(h, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/claim/callback?storyToken="+storyID, nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "/login?storyToken="+storyID {
			t.Fatalf("Location = %q", loc)
		}
	})

	t.Run("signed-in viewer claims and lands on the story", func(t *testing.T) {
		repo := &fakeStoriesRepo{
			claimFn: func(_ context.Context, id, authorID string) (story.Story, error) {
				return story.Story{ID: id, AuthorID: &authorID}, nil
			},
		}
		jobsRepo := &fakeJobsRepo{}
		h := handlers.NewStoriesHandler(repo, jobsRepo, nil)
		r := setupStoriesRouter(h, &session.Session{UserID: viewerID, Role: user.RoleAuthor})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/claim/callback?storyToken="+storyID, nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "/stories/"+storyID {
			t.Fatalf("Location = %q", loc)
		}
		if len(jobsRepo.created) != 1 {
			t.Fatalf("expected claim confirmation job, got %d", len(jobsRepo.created))
		}
	})
}

func TestCreateStory_GuestSubmission(t *testing.T) {
	var created story.Story
	repo := &fakeStoriesRepo{
		createFn: func(_ context.Context, s story.Story) (story.Story, error) {
			created = s
			return s, nil
		},
	}
	h := handlers.NewStoriesHandler(repo, nil, nil)
	r := setupStoriesRouter(h, nil)

	body, _ := json.Marshal(map[string]any{
		"title":       "A Stray Comet",
		"content":     "It fell for ninety years before anyone noticed.",
		"genre":       "science_fiction",
		"readingTime": 3,
		"isPublic":    true,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/stories", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", w.Code, w.Body.String())
	}
	if !created.IsGuest || created.AuthorID != nil {
		t.Fatalf("anonymous submission must be a guest story: %+v", created)
	}
}

func TestUpdateStory_OwnerOnly(t *testing.T) {
	storyID := newUUID()
	ownerID := newUUID()

	repo := &fakeStoriesRepo{
		getFn: func(_ context.Context, id string) (story.Story, error) {
			return story.Story{ID: id, AuthorID: strPtr(ownerID), IsPublic: true}, nil
		},
		updateFn: func(_ context.Context, id string, req story.UpdateStoryRequest) (story.Story, error) {
			return story.Story{ID: id, Title: req.Title, AuthorID: strPtr(ownerID)}, nil
		},
	}
	h := handlers.NewStoriesHandler(repo, nil, nil)

	body, _ := json.Marshal(map[string]any{
		"title":       "Edited Title",
		"content":     "The edited content of the story.",
		"genre":       "fantasy",
		"readingTime": 4,
		"isPublic":    true,
	})

	tests := []struct {
		name       string
		sess       *session.Session
		wantStatus int
	}{
		{
			name:       "stranger is forbidden",
			sess:       &session.Session{UserID: newUUID(), Role: user.RoleAuthor},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "owner may edit",
			sess:       &session.Session{UserID: ownerID, Role: user.RoleAuthor},
			wantStatus: http.StatusOK,
		},
		{
			name:       "admin may edit",
			sess:       &session.Session{UserID: newUUID(), Role: user.RoleAdmin},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupStoriesRouter(h, tt.sess)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/api/stories/"+storyID, bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}
