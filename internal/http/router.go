package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/microtales/microtales/internal/auth"
	"github.com/microtales/microtales/internal/cache"
	"github.com/microtales/microtales/internal/cache/redis"
	"github.com/microtales/microtales/internal/config"
	"github.com/microtales/microtales/internal/domain/user"
	"github.com/microtales/microtales/internal/http/handlers"
	"github.com/microtales/microtales/internal/http/middlewares"
	"github.com/microtales/microtales/internal/observability"
	"github.com/microtales/microtales/internal/repo/postgres"
	"github.com/microtales/microtales/internal/session"
)

type RouterDeps struct {
	Cfg       config.Config
	Pool      *pgxpool.Pool
	Redis     *redis.Client // nil disables the shared listing cache
	Prom      *observability.Prom
	Templates string // glob for the HTML templates
	Static    string // directory with page assets, empty disables /static
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Cfg

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("microtales-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20)) // 1 MiB

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	if deps.Templates != "" {
		r.LoadHTMLGlob(deps.Templates)
	}

	if deps.Static != "" {
		r.Static("/static", deps.Static)
	}

	// auth plumbing
	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	sessions := middlewares.NewSessionMiddleware(session.NewResolver(jwtManager))
	r.Use(sessions.ResolveSession())

	// repositories
	usersRepo := postgres.NewUsersRepo(deps.Pool)
	storiesRepo := postgres.NewStoriesRepo(deps.Pool, deps.Prom)
	ratingsRepo := postgres.NewRatingsRepo(deps.Pool, deps.Prom)
	refreshRepo := postgres.NewRefreshTokensRepo(deps.Pool)
	jobsRepo := postgres.NewJobsRepo(deps.Pool, deps.Prom)

	// a nil *redis.Client must become a nil interface, not a typed nil
	var invalidator handlers.CacheInvalidator
	var listingCache handlers.ListingCache
	if deps.Redis != nil {
		invalidator = deps.Redis
		listingCache = deps.Redis
	}

	// handlers
	healthHandler := handlers.NewHealthHandler(deps.Pool)
	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager, refreshRepo, cfg)
	storiesHandler := handlers.NewStoriesHandler(storiesRepo, jobsRepo, invalidator)
	authorsHandler := handlers.NewAuthorsHandler(usersRepo, storiesRepo, listingCache, deps.Prom)
	ratingsHandler := handlers.NewRatingsHandler(ratingsRepo, storiesRepo)
	adminJobsHandler := handlers.NewAdminJobsHandler(jobsRepo)
	pagesHandler := handlers.NewPagesHandler(storiesRepo, usersRepo, ratingsRepo, cache.New(10*time.Second), deps.Prom)

	// ops
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/readyz", healthHandler.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// server-rendered pages
	r.GET("/", pagesHandler.Browse)
	r.GET("/stories/:id", pagesHandler.StoryPage)
	r.GET("/authors/:id", pagesHandler.AuthorPage)
	r.GET("/login", pagesHandler.LoginPage)
	r.GET("/claim/callback", storiesHandler.ClaimCallback)

	// auth endpoints, limited by IP to slow down credential stuffing
	authLimiter := middlewares.NewRateLimiter(10, time.Minute)

	authGroup := r.Group("/auth")
	authGroup.Use(authLimiter.RateLimiterMiddleware(middlewares.KeyByIP))
	{
		// login and logout also serve the page forms, so no JSON gate here;
		// the handlers branch on content type
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)

		jsonOnly := authGroup.Group("")
		jsonOnly.Use(middlewares.RequireJSON())
		{
			jsonOnly.POST("/signup", authHandler.SignUp)
			jsonOnly.POST("/refresh", authHandler.Refresh)
		}
	}

	// facade API
	writeLimiter := middlewares.NewRateLimiter(60, time.Minute)

	api := r.Group("/api")
	api.Use(middlewares.RequireJSON())
	{
		api.GET("/stories", storiesHandler.BrowseStories)
		api.GET("/stories/:id", storiesHandler.GetStory)
		api.GET("/authors/:id", authorsHandler.GetAuthor)
		api.GET("/authors/:id/stories", authorsHandler.GetAuthorStories)

		// guest submissions are allowed, so creation is not behind RequireAuth
		api.POST("/stories", writeLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP), storiesHandler.CreateStory)

		authed := api.Group("")
		authed.Use(sessions.RequireAuth())
		authed.Use(writeLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
		{
			authed.PUT("/stories/:id", storiesHandler.UpdateStory)
			authed.POST("/stories/:id/claim", storiesHandler.ClaimStory)
			authed.GET("/stories/:id/rating", ratingsHandler.GetMyRating)
			authed.PUT("/stories/:id/rating", ratingsHandler.RateStory)
		}

		admin := api.Group("")
		admin.Use(sessions.RequireAuth())
		admin.Use(sessions.RequireRole(user.RoleAdmin))
		{
			admin.DELETE("/stories/:id", storiesHandler.DeleteStory)
		}
	}

	// admin job ops
	adminGroup := r.Group("/admin")
	adminGroup.Use(sessions.RequireAuth())
	adminGroup.Use(sessions.RequireRole(user.RoleAdmin))
	{
		adminGroup.GET("/jobs", adminJobsHandler.List)
		adminGroup.GET("/jobs/:id", adminJobsHandler.GetByID)
		adminGroup.POST("/jobs/:id/retry", adminJobsHandler.Retry)
		adminGroup.POST("/jobs/reprocess-dead", adminJobsHandler.ReprocessDead)
	}

	return r
}
