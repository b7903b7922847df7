package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/microtales/microtales/internal/domain/story"
)

// StoriesRepo is an in-memory store mirroring the postgres repo surface.
// Used by tests that need a working store without a database.
type StoriesRepo struct {
	mu    sync.RWMutex
	items map[string]story.Story
}

func NewStoriesRepo() *StoriesRepo {
	return &StoriesRepo{
		items: make(map[string]story.Story),
	}
}

func (r *StoriesRepo) Create(_ context.Context, s story.Story) (story.Story, error) {
	r.mu.Lock()
	r.items[s.ID] = s
	r.mu.Unlock()

	return s, nil
}

func (r *StoriesRepo) GetByID(_ context.Context, id string) (story.Story, error) {
	r.mu.RLock()
	s, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return story.Story{}, story.ErrNotFound
	}

	return s, nil
}

func (r *StoriesRepo) ListByAuthor(_ context.Context, authorID string) ([]story.Story, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]story.Story, 0, 8)

	for _, s := range r.items {
		if s.AuthorID != nil && *s.AuthorID == authorID {
			out = append(out, s)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (r *StoriesRepo) ListPublic(_ context.Context, filter story.ListFilter) ([]story.Story, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]story.Story, 0, len(r.items))

	for _, s := range r.items {
		if !s.IsPublic {
			continue
		}
		if filter.Genre != nil && s.Genre != *filter.Genre {
			continue
		}
		if filter.Query != nil && !strings.Contains(strings.ToLower(s.Title), strings.ToLower(*filter.Query)) {
			continue
		}
		all = append(all, s)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)

	if filter.Offset >= len(all) {
		return []story.Story{}, total, nil
	}
	all = all[filter.Offset:]

	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}

	return all, total, nil
}

func (r *StoriesRepo) Update(_ context.Context, id string, req story.UpdateStoryRequest) (story.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.items[id]

	if !ok {
		return story.Story{}, story.ErrNotFound
	}

	s.Title = req.Title
	s.Content = req.Content
	s.Genre = req.Genre
	s.ReadingTime = req.ReadingTime
	if req.IsPublic != nil {
		s.IsPublic = *req.IsPublic
	}
	s.UpdatedAt = time.Now().UTC()

	r.items[id] = s
	return s, nil
}

func (r *StoriesRepo) Claim(_ context.Context, id, authorID string) (story.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.items[id]

	if !ok {
		return story.Story{}, story.ErrNotFound
	}

	if s.Claimed() {
		return story.Story{}, story.ErrAlreadyClaimed
	}

	s.AuthorID = &authorID
	s.IsGuest = false
	s.UpdatedAt = time.Now().UTC()

	r.items[id] = s
	return s, nil
}

func (r *StoriesRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return story.ErrNotFound
	}

	delete(r.items, id)
	return nil
}
