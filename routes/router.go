package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cppla/hongbao/config"
	"github.com/cppla/hongbao/controllers"
	"github.com/cppla/hongbao/identity"
	"github.com/cppla/hongbao/middleware"
	"github.com/cppla/hongbao/store"
	"github.com/cppla/hongbao/utils"
)

// Deps carries everything the router wires into controllers.
type Deps struct {
	Config  config.AppConfig
	Records store.RecordStore
	Gate    identity.Gate

	// Accounts and Leaderboard are only set in the multi profile.
	Accounts    *identity.JWTGate
	Leaderboard store.LeaderboardSource
	Cache       *utils.Cache

	// AccessLog overrides the rolling gin log file.
	AccessLog *zap.Logger
	Now       func() time.Time
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	// request bodies are explicit structs; unknown fields are a client error
	binding.EnableDecoderDisallowUnknownFields = true

	r := gin.New()
	gl := d.AccessLog
	if gl == nil {
		var err error
		gl, err = utils.NewRollingFileLogger(cfg.GinPath, cfg)
		if err != nil {
			utils.Sugar.Warnf("gin log file unavailable, using app logger: %v", err)
			gl = utils.Logger
		}
	}
	r.Use(middleware.RequestID())
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, false))
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	recordController := controllers.NewRecordController(d.Records, d.Cache)
	statsController := controllers.NewStatsController(d.Leaderboard, d.Cache,
		time.Duration(cfg.LeaderboardCacheSec)*time.Second, d.Now)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", statsController.Health)

	if d.Accounts != nil {
		authController := controllers.NewAuthController(d.Accounts, d.Cache)
		authGroup := api.Group("/auth")
		authGroup.Use(limiter.Middleware())
		authGroup.POST("/register", authController.Register)
		authGroup.POST("/login", authController.Login)
		authGroup.POST("/logout", middleware.AuthRequired(d.Gate), authController.Logout)
		authGroup.GET("/me", middleware.AuthRequired(d.Gate), authController.Me)
		authGroup.PATCH("/visibility", middleware.AuthRequired(d.Gate), authController.UpdateVisibility)
	}
	if d.Leaderboard != nil {
		api.GET("/leaderboard", statsController.Leaderboard)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(d.Gate), limiter.Middleware())
	protected.GET("/records", recordController.List)
	protected.POST("/records", recordController.Create)
	protected.DELETE("/records", recordController.DeleteAll)
	protected.DELETE("/records/:id", recordController.Delete)
	protected.GET("/total", recordController.Total)
	protected.GET("/years", recordController.Years)
	protected.GET("/stats/distribution", recordController.Distribution)
	protected.GET("/stats/sources", recordController.Sources)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
