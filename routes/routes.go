package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yashrajoria/catalog-seeder/controllers"
	apperrors "github.com/yashrajoria/catalog-seeder/errors"
	"github.com/yashrajoria/catalog-seeder/middleware"
	pkgaws "github.com/yashrajoria/catalog-seeder/pkg/aws"
)

// Options configures the admin router.
type Options struct {
	JWTSecret   []byte
	RateLimiter *middleware.RateLimiter
	Metrics     *pkgaws.MetricsClient
	Logger      *zap.Logger

	// AllowOrigins enables CORS for an admin console served elsewhere.
	AllowOrigins []string
}

// NewRouter builds the admin API engine.
func NewRouter(sc *controllers.SeedController, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID())
	if opts.Logger != nil {
		r.Use(middleware.RequestLogger(opts.Logger))
	}
	if len(opts.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(middleware.Metrics(opts.Metrics, "catalog-seeder"), apperrors.ErrorMiddleware())

	r.GET("/health", sc.Health)
	RegisterSeedRoutes(r, sc, opts)
	return r
}

// RegisterSeedRoutes sets up the authenticated seed admin routes.
func RegisterSeedRoutes(r *gin.Engine, sc *controllers.SeedController, opts Options) {
	seed := r.Group("/api/v1/seed")
	if opts.RateLimiter != nil {
		seed.Use(middleware.RateLimit(opts.RateLimiter))
	}
	seed.Use(middleware.JWTAuth(opts.JWTSecret), middleware.AdminOnly())

	seed.GET("/markers", sc.GetMarkers)
	seed.PUT("/settings", sc.UpdateSettings)
	seed.POST("/dry-run", sc.DryRun)
	seed.POST("/run", sc.Run)
	seed.POST("/reset", sc.Reset)
	seed.GET("/runs", sc.ListRuns)
}
