package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/microtales/microtales/internal/auth"
	"github.com/microtales/microtales/internal/config"
	"github.com/microtales/microtales/internal/domain/user"
	"github.com/microtales/microtales/internal/repo/postgres"
	"github.com/microtales/microtales/internal/security"
	"github.com/microtales/microtales/internal/session"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, email, passwordHash, name, role string) (user.User, error)
}

type RefreshTokenStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, row postgres.RefreshTokenRow) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (postgres.RefreshTokenRow, error)
	Revoke(ctx context.Context, tx pgx.Tx, id string, replacedBy *string) error
}

type AuthHandler struct {
	users        UserReader
	userWriter   UserWriter
	jwt          *auth.Manager
	refreshStore RefreshTokenStore
	cfg          config.Config
}

func NewAuthHandler(users UserReader, userWriter UserWriter, jwtManager *auth.Manager, refreshStore RefreshTokenStore, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:        users,
		userWriter:   userWriter,
		jwt:          jwtManager,
		refreshStore: refreshStore,
		cfg:          cfg,
	}
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required,min=6"`
}

type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required,min=2,max=80"`
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	u, err := h.userWriter.Create(cctx, req.Email, hash, req.Name, user.RoleAuthor)

	if err != nil {
		if err == postgres.ErrEmailAlreadyUsed {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	accessToken, err := h.issueSession(ctx, cctx, u)
	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	RespondData(ctx, http.StatusCreated, gin.H{
		"accessToken": accessToken,
		"redirectTo":  "/authors/" + u.ID,
	})
}

// Login validates the credential shape before touching the store; a
// malformed email or short password never hits the database. The login
// page posts the same endpoint form-encoded and gets redirects back.
func (h *AuthHandler) Login(ctx *gin.Context) {
	if isFormRequest(ctx) {
		h.loginForm(ctx)
		return
	}

	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	if err := security.CheckPassword(foundUser.PasswordHash, req.Password); err != nil {
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	accessToken, err := h.issueSession(ctx, cctx, foundUser)
	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	RespondData(ctx, http.StatusOK, gin.H{
		"accessToken": accessToken,
		"redirectTo":  loginRedirect(foundUser.ID, ctx.Query("storyToken")),
	})
}

// loginForm is the browser path. Credential failures bounce back to the
// login page with a code it can render; success is a real 302.
func (h *AuthHandler) loginForm(ctx *gin.Context) {
	storyToken := ctx.PostForm("storyToken")
	if storyToken == "" {
		storyToken = ctx.Query("storyToken")
	}

	var req LoginRequest
	if err := ctx.ShouldBind(&req); err != nil {
		ctx.Redirect(http.StatusFound, loginFailureTarget(storyToken))
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		ctx.Redirect(http.StatusFound, loginFailureTarget(storyToken))
		return
	}

	if err := security.CheckPassword(foundUser.PasswordHash, req.Password); err != nil {
		ctx.Redirect(http.StatusFound, loginFailureTarget(storyToken))
		return
	}

	if _, err := h.issueSession(ctx, cctx, foundUser); err != nil {
		ctx.Redirect(http.StatusFound, "/login?code="+url.QueryEscape("Something went wrong. Please try again."))
		return
	}

	ctx.Redirect(http.StatusFound, loginRedirect(foundUser.ID, storyToken))
}

func isFormRequest(ctx *gin.Context) bool {
	ct := ctx.ContentType()
	return ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data"
}

func loginFailureTarget(storyToken string) string {
	target := "/login?code=credentials"
	if storyToken != "" {
		target += "&storyToken=" + url.QueryEscape(storyToken)
	}
	return target
}

// loginRedirect sends a signing-in claimer back to finish the claim,
// everyone else to their own profile.
func loginRedirect(userID, storyToken string) string {
	if storyToken != "" {
		return "/claim/callback?storyToken=" + url.QueryEscape(storyToken)
	}
	return "/authors/" + userID
}

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(h.refreshCookieName())

	if err != nil || raw == "" {
		RespondUnauthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)

	if err != nil {
		RespondUnauthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	// rotation under a row lock
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	tx, err := h.refreshStore.BeginTx(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	defer func() { _ = tx.Rollback(cctx) }()

	row, err := h.refreshStore.GetForUpdate(cctx, tx, claims.JTI)

	if err != nil {
		RespondUnauthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	if row.RevokedAt != nil {
		RespondUnauthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	if time.Now().UTC().After(row.ExpiresAt) {
		RespondUnauthorized(ctx, "expired_refresh", "Refresh token expired.")
		return
	}

	// verify hash matches the presented token (prevents token substitution)
	if row.TokenHash != h.jwt.HashRefreshToken(raw) {
		RespondUnauthorized(ctx, "invalid_refresh", "Invalid refresh token.")
		return
	}

	newRaw, newJTI, newExpiresAt, err := h.jwt.GenerateRefreshToken(row.UserID, claims.Name, claims.Role)
	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	// revoke old, insert new
	if err := h.refreshStore.Revoke(cctx, tx, row.ID, &newJTI); err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	newRow := postgres.RefreshTokenRow{
		ID:        newJTI,
		UserID:    row.UserID,
		TokenHash: h.jwt.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.refreshStore.Create(cctx, tx, newRow); err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	if err := tx.Commit(cctx); err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(row.UserID, claims.Name, claims.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setRefreshCookie(ctx, newRaw, newExpiresAt)
	h.setSessionCookie(ctx, accessToken)

	RespondData(ctx, http.StatusOK, gin.H{
		"accessToken": accessToken,
	})
}

// Logout always lands on the home route; the sign-out form in the header
// gets a 302, API callers get the redirect target in the envelope.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	home := func() {
		h.clearRefreshCookie(ctx)
		h.clearSessionCookie(ctx)

		if isFormRequest(ctx) {
			ctx.Redirect(http.StatusFound, "/")
			return
		}
		RespondData(ctx, http.StatusOK, gin.H{"redirectTo": "/"})
	}

	raw, err := ctx.Cookie(h.refreshCookieName())

	if err != nil || raw == "" {
		home()
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		home()
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	tx, err := h.refreshStore.BeginTx(cctx)
	if err != nil {
		home()
		return
	}
	defer func() { _ = tx.Rollback(cctx) }()

	// revoke that one token (idempotent)
	_ = h.refreshStore.Revoke(cctx, tx, claims.JTI, nil)
	_ = tx.Commit(cctx)

	home()
}

// issueSession generates the token pair, persists the refresh half and
// sets both cookies.
func (h *AuthHandler) issueSession(ctx *gin.Context, cctx context.Context, u user.User) (string, error) {
	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Name, u.Role)
	if err != nil {
		return "", err
	}

	rawRefresh, jti, expiresAt, err := h.jwt.GenerateRefreshToken(u.ID, u.Name, u.Role)
	if err != nil {
		return "", err
	}

	if err := h.storeRefreshToken(cctx, u.ID, jti, rawRefresh, expiresAt); err != nil {
		return "", err
	}

	h.setRefreshCookie(ctx, rawRefresh, expiresAt)
	h.setSessionCookie(ctx, accessToken)

	return accessToken, nil
}

func (h *AuthHandler) storeRefreshToken(ctx context.Context, userID, jti, raw string, expiresAt time.Time) error {
	tx, err := h.refreshStore.BeginTx(ctx)

	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := postgres.RefreshTokenRow{
		ID:        jti,
		UserID:    userID,
		TokenHash: h.jwt.HashRefreshToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.refreshStore.Create(ctx, tx, row); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (h *AuthHandler) refreshCookieName() string {
	return "refresh_token"
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	secure := h.cfg.Env == "prod"

	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		h.refreshCookieName(),
		raw,
		maxAge,
		"/auth",
		"",
		secure,
		true, // HttpOnly
	)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		h.refreshCookieName(),
		"",
		-1,
		"/auth",
		"",
		secure,
		true,
	)
}

// The session cookie carries the short-lived access token so
// server-rendered pages can resolve the viewer without a header.
func (h *AuthHandler) setSessionCookie(ctx *gin.Context, accessToken string) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(
		session.CookieName,
		accessToken,
		int(h.cfg.AccessTTL().Seconds()),
		"/",
		"",
		secure,
		true,
	)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(
		session.CookieName,
		"",
		-1,
		"/",
		"",
		secure,
		true,
	)
}
