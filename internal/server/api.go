package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/cache"
	"github.com/rotaclub/rota/internal/confraria"
	"github.com/rotaclub/rota/internal/config"
	apierrors "github.com/rotaclub/rota/internal/errors"
	"github.com/rotaclub/rota/internal/feed"
	"github.com/rotaclub/rota/internal/gamification"
	"github.com/rotaclub/rota/internal/logging"
	"github.com/rotaclub/rota/internal/marketplace"
	"github.com/rotaclub/rota/internal/middleware"
	"github.com/rotaclub/rota/internal/monitoring"
	"github.com/rotaclub/rota/internal/notification"
	"github.com/rotaclub/rota/internal/payout"
	"github.com/rotaclub/rota/internal/profile"
	"github.com/rotaclub/rota/internal/proposal"
	"github.com/rotaclub/rota/internal/settings"
	"github.com/rotaclub/rota/internal/storage"
	"github.com/rotaclub/rota/internal/store"
)

// Services groups the domain services the API exposes
type Services struct {
	Store         store.Store
	Cache         cache.Cache
	Storage       storage.Remover
	Settings      *settings.Service
	Gamification  *gamification.Service
	Profiles      *profile.Service
	Marketplace   *marketplace.Service
	Expiry        *marketplace.Scheduler
	Payout        *payout.Service
	Feed          *feed.Service
	Proposals     *proposal.Service
	Confraria     *confraria.Service
	Notifications *notification.Service
}

// NewServices wires every domain service over one store and cache
func NewServices(cfg *config.Config, st store.Store, c cache.Cache, remover storage.Remover) *Services {
	ttl := cfg.Redis.CacheTTL
	settingsSvc := settings.NewService(st, c, ttl)
	gam := gamification.NewService(st, c, settingsSvc, ttl)
	market := marketplace.NewService(st, gam, remover)

	return &Services{
		Store:         st,
		Cache:         c,
		Storage:       remover,
		Settings:      settingsSvc,
		Gamification:  gam,
		Profiles:      profile.NewService(st, gam, gamification.ResolveRank),
		Marketplace:   market,
		Expiry:        marketplace.NewScheduler(market, cfg.Marketplace.ExpirySchedule),
		Payout:        payout.NewService(st, cfg.Payout.MinimumWithdrawal),
		Feed:          feed.NewService(st),
		Proposals:     proposal.NewService(st),
		Confraria:     confraria.NewService(st),
		Notifications: notification.NewService(st),
	}
}

// APIServer represents the main API server
type APIServer struct {
	config           *config.Config
	router           *gin.Engine
	svc              *Services
	jwtAuthenticator *middleware.JWTAuthenticator
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, svc *Services) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware in order
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	srv := &APIServer{
		config:           cfg,
		router:           router,
		svc:              svc,
		jwtAuthenticator: middleware.NewJWTAuthenticator(&cfg.JWT),
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.RateLimit(s.svc.Cache, &s.config.RateLimit))

	auth := s.jwtAuthenticator.JWTAuth()

	// Public reads
	v1.GET("/profiles/:slug", s.handleGetProfileBySlug)
	v1.GET("/gamification/ranks", s.handleListRanks)
	v1.GET("/gamification/leaderboard", s.handleLeaderboard)
	v1.GET("/feed", s.handleListFeed)

	market := v1.Group("/marketplace")
	{
		market.GET("/tiers", s.handleListTiers)
		market.GET("/categories", s.handleListCategories)
		market.GET("/ads", s.handleListAds)
		market.GET("/ads/:id", s.handleGetAd)
		market.POST("/ads", auth, s.handleCreateAd)
		market.PUT("/ads/:id", auth, s.handleUpdateAd)
		market.DELETE("/ads/:id", auth, s.handleDeleteAd)
		market.POST("/ads/:id/images", auth, s.handleAddImages)
		market.DELETE("/ads/:id/images", auth, s.handleRemoveImage)
		market.POST("/ads/:id/renew", auth, s.handleRenewAd)
		market.POST("/ads/:id/sold", auth, s.handleMarkSold)
	}

	// Authenticated member routes
	me := v1.Group("/me", auth)
	{
		me.POST("", s.handleCreateProfile)
		me.GET("", s.handleGetMe)
		me.PUT("", s.handleUpdateMe)
		me.GET("/gamification", s.handleSummary)
		me.GET("/gamification/history", s.handleHistory)
		me.GET("/medals", s.handleEarnedMedals)
		me.GET("/ads", s.handleMyAds)
		me.GET("/notifications", s.handleListNotifications)
		me.POST("/notifications/:id/read", s.handleMarkNotificationRead)
	}

	payouts := v1.Group("/payout", auth)
	{
		payouts.GET("/balance", s.handleBalance)
		payouts.GET("/commissions", s.handleListCommissions)
		payouts.GET("/withdrawals", s.handleListWithdrawals)
		payouts.POST("/withdrawals", s.handleRequestWithdrawal)
	}

	posts := v1.Group("/feed/posts", auth)
	{
		posts.POST("", s.handleCreatePost)
		posts.DELETE("/:id", s.handleDeletePost)
	}

	projects := v1.Group("/projects", auth)
	{
		projects.POST("", s.handleCreateProject)
		projects.GET("/:id", s.handleGetProject)
		projects.GET("/:id/proposals", s.handleListProposals)
		projects.POST("/:id/proposals", s.handleSubmitProposal)
		projects.POST("/:id/complete", s.handleCompleteProject)
		projects.POST("/:id/cancel", s.handleCancelProject)
	}
	v1.POST("/proposals/:id/accept", auth, s.handleAcceptProposal)

	confrarias := v1.Group("/confraternities", auth)
	{
		confrarias.POST("", s.handleScheduleConfraternity)
		confrarias.GET("/:id", s.handleGetConfraternity)
		confrarias.POST("/:id/confirm", s.handleConfirmConfraternity)
		confrarias.POST("/:id/cancel", s.handleCancelConfraternity)
	}

	// Admin routes (protected - requires admin role)
	admin := v1.Group("/admin", auth, middleware.RequireAdmin(&s.config.JWT))
	{
		admin.GET("/withdrawals/pending", s.handleAdminPendingWithdrawals)
		admin.POST("/withdrawals/:id/approve", s.handleAdminApproveWithdrawal)
		admin.POST("/withdrawals/:id/reject", s.handleAdminRejectWithdrawal)
		admin.POST("/commissions", s.handleAdminRecordCommission)
		admin.POST("/commissions/:id/release", s.handleAdminReleaseCommission)

		admin.POST("/ads/:id/activate", s.handleAdminActivateAd)
		admin.DELETE("/ads/:id", s.handleAdminDeleteAd)
		admin.GET("/jobs/ad-expiry", s.handleAdminExpiryStatus)
		admin.POST("/jobs/ad-expiry/run", s.handleAdminRunExpiry)

		admin.GET("/posts/pending", s.handleAdminPendingPosts)
		admin.POST("/posts/:id/validate", s.handleAdminValidatePost)
		admin.DELETE("/posts/:id", s.handleAdminDeletePost)

		admin.GET("/settings", s.handleAdminListSettings)
		admin.PUT("/settings/:key", s.handleAdminPutSetting)

		admin.GET("/ranks", s.handleAdminListRanks)
		admin.PUT("/ranks", s.handleAdminSaveRank)
		admin.DELETE("/ranks/:id", s.handleAdminDeleteRank)
		admin.GET("/medals", s.handleAdminListMedals)
		admin.PUT("/medals", s.handleAdminSaveMedal)

		admin.POST("/profiles/:id/medals", s.handleAdminAwardMedal)
		admin.POST("/profiles/:id/points", s.handleAdminAdjustPoints)
		admin.PUT("/profiles/:id/plan", s.handleAdminSetPlan)
		admin.PUT("/profiles/:id/status", s.handleAdminSetStatus)
	}
}

// healthCheck reports store reachability and the expiry job state
func (s *APIServer) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "healthy", "service": "rota"}
	if err := s.svc.Store.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["store"] = err.Error()
	}
	if s.svc.Expiry != nil {
		body["ad_expiry_running"] = s.svc.Expiry.IsRunning()
	}
	if b, ok := s.svc.Storage.(*storage.Breaker); ok {
		body["storage"] = b.State()
	}
	c.JSON(status, body)
}

// respondError sends a standardized error response
func respondError(c *gin.Context, err *apierrors.APIError) {
	c.JSON(err.HTTPStatus, apierrors.NewErrorResponse(err, middleware.GetRequestIDFromContext(c), c.Request.URL.Path))
}

// respondServiceError maps a domain error to the catalog. Unmapped errors are
// logged and hidden behind a 500.
func respondServiceError(c *gin.Context, component string, err error) {
	apiErr := mapError(err)
	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		logging.LogError(err, middleware.GetRequestIDFromContext(c), component, c.FullPath())
	}
	respondError(c, apiErr)
}

// currentMember returns the authenticated profile id
func currentMember(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetProfileIDFromContext(c)
	if !ok {
		respondError(c, apierrors.ErrUnauthorizedError)
	}
	return id, ok
}

func (s *APIServer) isAdmin(c *gin.Context) bool {
	return middleware.GetRoleFromContext(c) == s.config.JWT.AdminRole
}

// pathID parses a uuid path parameter
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds the body and reports validation failures
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return false
	}
	return true
}

// pagination reads page and page_size query parameters
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}
