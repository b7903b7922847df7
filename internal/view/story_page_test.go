package view

import (
	"testing"

	"github.com/microtales/microtales/internal/domain/story"
	"github.com/microtales/microtales/internal/domain/user"
	"github.com/microtales/microtales/internal/session"
)

func strPtr(s string) *string { return &s }

func TestStoryPage_TerminalStates(t *testing.T) {
	private := story.Story{ID: "s1", Title: "Hidden", IsPublic: false}
	public := story.Story{ID: "s2", Title: "Open", IsPublic: true}

	tests := []struct {
		name           string
		sess           *session.Session
		story          *story.Story
		wantNotFound   bool
		wantSignIn     bool
		wantHasContent bool
	}{
		{
			name:         "missing story",
			sess:         &session.Session{UserID: "u1", Role: user.RoleAuthor},
			story:        nil,
			wantNotFound: true,
		},
		{
			name:       "private story anonymous viewer",
			sess:       nil,
			story:      &private,
			wantSignIn: true,
		},
		{
			name:           "private story any signed-in viewer",
			sess:           &session.Session{UserID: "someone-else", Role: user.RoleAuthor},
			story:          &private,
			wantHasContent: true,
		},
		{
			name:           "public story anonymous viewer",
			sess:           nil,
			story:          &public,
			wantHasContent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := StoryPage(tt.sess, tt.story, 0)

			if m.NotFound != tt.wantNotFound {
				t.Fatalf("NotFound = %v, want %v", m.NotFound, tt.wantNotFound)
			}
			if m.SignInRequired != tt.wantSignIn {
				t.Fatalf("SignInRequired = %v, want %v", m.SignInRequired, tt.wantSignIn)
			}
			if tt.wantHasContent && m.Story.ID == "" {
				t.Fatalf("expected story content, got empty model")
			}
		})
	}
}

func TestStoryPage_ActionFlags(t *testing.T) {
	owned := story.Story{ID: "s1", IsPublic: true, AuthorID: strPtr("owner-1")}
	guest := story.Story{ID: "s2", IsPublic: true}

	tests := []struct {
		name       string
		sess       *session.Session
		story      story.Story
		wantEdit   bool
		wantDelete bool
		wantClaim  bool
	}{
		{
			name:  "anonymous viewer cannot do anything but claim stays visible",
			sess:  nil,
			story: guest, wantClaim: true,
		},
		{
			name:  "owner can edit but not delete",
			sess:  &session.Session{UserID: "owner-1", Role: user.RoleAuthor},
			story: owned, wantEdit: true,
		},
		{
			name:  "other author has no controls",
			sess:  &session.Session{UserID: "u9", Role: user.RoleAuthor},
			story: owned,
		},
		{
			name:  "admin can edit and delete any story",
			sess:  &session.Session{UserID: "adm", Role: user.RoleAdmin},
			story: owned, wantEdit: true, wantDelete: true,
		},
		{
			name:  "claimed story is not claimable",
			sess:  &session.Session{UserID: "u9", Role: user.RoleAuthor},
			story: owned, wantClaim: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := StoryPage(tt.sess, &tt.story, 0)

			if m.CanEdit != tt.wantEdit {
				t.Fatalf("CanEdit = %v, want %v", m.CanEdit, tt.wantEdit)
			}
			if m.CanDelete != tt.wantDelete {
				t.Fatalf("CanDelete = %v, want %v", m.CanDelete, tt.wantDelete)
			}
			if m.CanClaim != tt.wantClaim {
				t.Fatalf("CanClaim = %v, want %v", m.CanClaim, tt.wantClaim)
			}
		})
	}
}

func TestStoryPage_MyRatingPassthrough(t *testing.T) {
	s := story.Story{ID: "s1", IsPublic: true}

	m := StoryPage(nil, &s, 4)
	if m.MyRating != 4 {
		t.Fatalf("MyRating = %v, want 4", m.MyRating)
	}
}
