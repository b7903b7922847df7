package view

import (
	"testing"

	"github.com/microtales/microtales/internal/domain/user"
	"github.com/microtales/microtales/internal/session"
)

func TestLoginPage_ErrorMessages(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		storyToken string
		wantMsg    string
	}{
		{
			name:    "no error",
			code:    "",
			wantMsg: "",
		},
		{
			name:    "credentials code gets friendly message",
			code:    "credentials",
			wantMsg: "Invalid credentials. Please try again.",
		},
		{
			name:    "unknown code shown verbatim",
			code:    "account_locked",
			wantMsg: "account_locked",
		},
		{
			name:       "story token carried into form defaults",
			code:       "credentials",
			storyToken: "tok-123",
			wantMsg:    "Invalid credentials. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := LoginPage(tt.code, tt.storyToken)

			if m.ErrorMessage != tt.wantMsg {
				t.Fatalf("ErrorMessage = %q, want %q", m.ErrorMessage, tt.wantMsg)
			}
			if m.StoryToken != tt.storyToken {
				t.Fatalf("StoryToken = %q, want %q", m.StoryToken, tt.storyToken)
			}
		})
	}
}

func TestHeader(t *testing.T) {
	anon := Header(nil)
	if anon.SignedIn {
		t.Fatalf("anonymous header should not be signed in")
	}

	signedIn := Header(&session.Session{UserID: "u1", Name: "Jane", Role: user.RoleAuthor})
	if !signedIn.SignedIn || signedIn.Name != "Jane" {
		t.Fatalf("signed-in header missing identity: %+v", signedIn)
	}
	if signedIn.IsAdmin {
		t.Fatalf("author should not be flagged admin")
	}

	admin := Header(&session.Session{UserID: "u2", Name: "Root", Role: user.RoleAdmin})
	if !admin.IsAdmin {
		t.Fatalf("admin flag not set")
	}
}
