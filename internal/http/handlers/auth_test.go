package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/microtales/microtales/internal/auth"
	"github.com/microtales/microtales/internal/config"
	"github.com/microtales/microtales/internal/domain/user"
	"github.com/microtales/microtales/internal/http/handlers"
	"github.com/microtales/microtales/internal/repo/postgres"
)

type fakeUsersRepo struct {
	getByEmailFn    func(ctx context.Context, email string) (user.User, error)
	createFn        func(ctx context.Context, email, passwordHash, name, role string) (user.User, error)
	getByEmailCalls int
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	f.getByEmailCalls++
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsersRepo) Create(ctx context.Context, email, passwordHash, name, role string) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, email, passwordHash, name, role)
	}
	return user.User{ID: newUUID(), Email: email, Name: name, Role: role}, nil
}

// fakeTx satisfies pgx.Tx through embedding; only Commit and Rollback
// are ever reached by the handler.
type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakeRefreshStore struct {
	rows map[string]postgres.RefreshTokenRow
}

func newFakeRefreshStore() *fakeRefreshStore {
	return &fakeRefreshStore{rows: make(map[string]postgres.RefreshTokenRow)}
}

func (f *fakeRefreshStore) BeginTx(context.Context) (pgx.Tx, error) {
	return fakeTx{}, nil
}

func (f *fakeRefreshStore) Create(_ context.Context, _ pgx.Tx, row postgres.RefreshTokenRow) error {
	f.rows[row.ID] = row
	return nil
}

func (f *fakeRefreshStore) GetForUpdate(_ context.Context, _ pgx.Tx, id string) (postgres.RefreshTokenRow, error) {
	row, ok := f.rows[id]
	if !ok {
		return postgres.RefreshTokenRow{}, errors.New("no rows")
	}
	return row, nil
}

func (f *fakeRefreshStore) Revoke(_ context.Context, _ pgx.Tx, id string, _ *string) error {
	row, ok := f.rows[id]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	row.RevokedAt = &now
	f.rows[id] = row
	return nil
}

func newAuthHandler(users *fakeUsersRepo) *handlers.AuthHandler {
	jwt := auth.NewManager("test-secret", 15*time.Minute, 7*24*time.Hour)
	return handlers.NewAuthHandler(users, users, jwt, newFakeRefreshStore(), config.Config{Env: "test"})
}

func setupAuthRouter(h *handlers.AuthHandler) *gin.Engine {
	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/signup", h.SignUp)
	r.POST("/auth/logout", h.Logout)
	return r
}

func postJSON(r *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestLogin_ValidatesBeforeStoreCall(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "malformed email", email: "not-an-email", password: "password123"},
		{name: "short password", email: "jane@example.com", password: "12345"},
		{name: "missing password", email: "jane@example.com", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &fakeUsersRepo{}
			r := setupAuthRouter(newAuthHandler(users))

			w := postJSON(r, "/auth/login", map[string]string{
				"email":    tt.email,
				"password": tt.password,
			})

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body: %s", w.Code, w.Body.String())
			}
			if users.getByEmailCalls != 0 {
				t.Fatalf("store must not be called for invalid input, got %d calls", users.getByEmailCalls)
			}
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)

	users := &fakeUsersRepo{
		getByEmailFn: func(_ context.Context, email string) (user.User, error) {
			if email == "jane@example.com" {
				return user.User{ID: newUUID(), Email: email, PasswordHash: string(hash), Role: user.RoleAuthor}, nil
			}
			return user.User{}, user.ErrNotFound
		},
	}
	r := setupAuthRouter(newAuthHandler(users))

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "unknown email", email: "nobody@example.com", password: "whatever123"},
		{name: "wrong password", email: "jane@example.com", password: "wrong-password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(r, "/auth/login", map[string]string{
				"email":    tt.email,
				"password": tt.password,
			})

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401; body: %s", w.Code, w.Body.String())
			}

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error.Code != "invalid_credentials" {
				t.Fatalf("error code = %q, want invalid_credentials", body.Error.Code)
			}
		})
	}
}

func TestLogin_RedirectTargets(t *testing.T) {
	userID := newUUID()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)

	users := &fakeUsersRepo{
		getByEmailFn: func(_ context.Context, email string) (user.User, error) {
			return user.User{ID: userID, Email: email, Name: "Jane", PasswordHash: string(hash), Role: user.RoleAuthor}, nil
		},
	}
	r := setupAuthRouter(newAuthHandler(users))

	tests := []struct {
		name         string
		path         string
		wantRedirect string
	}{
		{
			name:         "plain login goes to own profile",
			path:         "/auth/login",
			wantRedirect: "/authors/" + userID,
		},
		{
			name:         "pending claim goes to the claim callback",
			path:         "/auth/login?storyToken=tok-abc",
			wantRedirect: "/claim/callback?storyToken=tok-abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(r, tt.path, map[string]string{
				"email":    "jane@example.com",
				"password": "password123",
			})

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
			}

			var body struct {
				Success bool `json:"success"`
				Data    struct {
					AccessToken string `json:"accessToken"`
					RedirectTo  string `json:"redirectTo"`
				} `json:"data"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}

			if !body.Success || body.Data.AccessToken == "" {
				t.Fatalf("expected token in envelope, got %s", w.Body.String())
			}
			if body.Data.RedirectTo != tt.wantRedirect {
				t.Fatalf("redirectTo = %q, want %q", body.Data.RedirectTo, tt.wantRedirect)
			}
		})
	}
}

func TestSignUp(t *testing.T) {
	t.Run("new author gets the author role", func(t *testing.T) {
		var gotRole string
		users := &fakeUsersRepo{
			createFn: func(_ context.Context, email, _, name, role string) (user.User, error) {
				gotRole = role
				return user.User{ID: newUUID(), Email: email, Name: name, Role: role}, nil
			},
		}
		r := setupAuthRouter(newAuthHandler(users))

		w := postJSON(r, "/auth/signup", map[string]string{
			"email":    "new@example.com",
			"password": "password123",
			"name":     "New Author",
		})

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201; body: %s", w.Code, w.Body.String())
		}
		if gotRole != user.RoleAuthor {
			t.Fatalf("role = %q, want %q", gotRole, user.RoleAuthor)
		}
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		users := &fakeUsersRepo{
			createFn: func(_ context.Context, _, _, _, _ string) (user.User, error) {
				return user.User{}, postgres.ErrEmailAlreadyUsed
			},
		}
		r := setupAuthRouter(newAuthHandler(users))

		w := postJSON(r, "/auth/signup", map[string]string{
			"email":    "taken@example.com",
			"password": "password123",
			"name":     "Late Comer",
		})

		if w.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409; body: %s", w.Code, w.Body.String())
		}
	})
}

func TestLogout_AlwaysRedirectsHome(t *testing.T) {
	users := &fakeUsersRepo{}
	r := setupAuthRouter(newAuthHandler(users))

	// no refresh cookie at all
	w := postJSON(r, "/auth/logout", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Data struct {
			RedirectTo string `json:"redirectTo"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data.RedirectTo != "/" {
		t.Fatalf("redirectTo = %q, want /", body.Data.RedirectTo)
	}
}

func postForm(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	return w
}

func TestLogin_FormPostRedirects(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	userID := newUUID()
	users := &fakeUsersRepo{
		getByEmailFn: func(_ context.Context, email string) (user.User, error) {
			if email != "jane@example.com" {
				return user.User{}, user.ErrNotFound
			}
			return user.User{ID: userID, Email: email, Name: "Jane", Role: user.RoleAuthor, PasswordHash: string(hash)}, nil
		},
	}
	r := setupAuthRouter(newAuthHandler(users))

	t.Run("valid credentials land on own profile", func(t *testing.T) {
		w := postForm(r, "/auth/login", url.Values{
			"email":    {"jane@example.com"},
			"password": {"password123"},
		})

		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302; body: %s", w.Code, w.Body.String())
		}
		if got := w.Header().Get("Location"); got != "/authors/"+userID {
			t.Fatalf("Location = %q, want /authors/%s", got, userID)
		}

		cookies := w.Result().Cookies()
		var sawSession bool
		for _, c := range cookies {
			if c.Name == "mt_session" && c.Value != "" {
				sawSession = true
			}
		}
		if !sawSession {
			t.Fatalf("no mt_session cookie set; cookies: %v", cookies)
		}
	})

	t.Run("storyToken resumes the claim", func(t *testing.T) {
		w := postForm(r, "/auth/login", url.Values{
			"email":      {"jane@example.com"},
			"password":   {"password123"},
			"storyToken": {"tok-abc"},
		})

		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", w.Code)
		}
		if got := w.Header().Get("Location"); got != "/claim/callback?storyToken=tok-abc" {
			t.Fatalf("Location = %q", got)
		}
	})

	t.Run("wrong password bounces back with the credentials code", func(t *testing.T) {
		w := postForm(r, "/auth/login", url.Values{
			"email":    {"jane@example.com"},
			"password": {"wrong-password"},
		})

		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", w.Code)
		}
		if got := w.Header().Get("Location"); got != "/login?code=credentials" {
			t.Fatalf("Location = %q", got)
		}
	})

	t.Run("bounce keeps the storyToken", func(t *testing.T) {
		w := postForm(r, "/auth/login", url.Values{
			"email":      {"jane@example.com"},
			"password":   {"wrong-password"},
			"storyToken": {"tok-abc"},
		})

		if got := w.Header().Get("Location"); got != "/login?code=credentials&storyToken=tok-abc" {
			t.Fatalf("Location = %q", got)
		}
	})
}

func TestLogout_FormPostRedirectsHome(t *testing.T) {
	users := &fakeUsersRepo{}
	r := setupAuthRouter(newAuthHandler(users))

	w := postForm(r, "/auth/logout", url.Values{})

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302; body: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != "/" {
		t.Fatalf("Location = %q, want /", got)
	}

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "mt_session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("mt_session cookie was not cleared")
	}
}
