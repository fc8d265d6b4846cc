package router

import (
	"path"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/institute-api/internal/handler/activity"
	"github.com/jwalitptl/institute-api/internal/handler/appointment"
	authh "github.com/jwalitptl/institute-api/internal/handler/auth"
	"github.com/jwalitptl/institute-api/internal/handler/carousel"
	"github.com/jwalitptl/institute-api/internal/handler/finance"
	"github.com/jwalitptl/institute-api/internal/handler/health"
	"github.com/jwalitptl/institute-api/internal/handler/message"
	"github.com/jwalitptl/institute-api/internal/handler/patient"
	"github.com/jwalitptl/institute-api/internal/handler/post"
	"github.com/jwalitptl/institute-api/internal/handler/prometheus"
	"github.com/jwalitptl/institute-api/internal/handler/statusrequest"
	"github.com/jwalitptl/institute-api/internal/handler/user"
	"github.com/jwalitptl/institute-api/internal/middleware"
	"github.com/jwalitptl/institute-api/internal/storage"
)

type Handlers struct {
	Health        *health.Handler
	Metrics       *prometheus.Handler
	Auth          *authh.Handler
	User          *user.Handler
	Patient       *patient.Handler
	Appointment   *appointment.Handler
	StatusRequest *statusrequest.Handler
	Post          *post.Handler
	Activity      *activity.Handler
	Message       *message.Handler
	Finance       *finance.Handler
	Carousel      *carousel.Handler
}

type RouterConfig struct {
	Mode           string
	AllowedOrigins []string
	// RateLimit and RateBurst apply per client IP to login and the contact form.
	RateLimit      rate.Limit
	RateBurst      int
	MaxBodyBytes   int64
	MaxUploadBytes int64
	RequestTimeout time.Duration
	HSTS           bool
	// UploadsPath is the URL prefix under which the image part of UploadsDir is served.
	UploadsPath string
	UploadsDir  string
}

type Router struct {
	engine *gin.Engine
	auth   *middleware.AuthMiddleware
	h      Handlers
	config RouterConfig
}

func NewRouter(auth *middleware.AuthMiddleware, h Handlers, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	middleware.RegisterValidators()

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	r := &Router{
		engine: engine,
		auth:   auth,
		h:      h,
		config: config,
	}

	// order matters: the logger and metrics must observe the status written by the error middleware
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		h.Metrics.Middleware(),
		middleware.Recovery(),
		middleware.ErrorHandler(),
		middleware.CORS(middleware.DefaultCORSConfig(config.AllowedOrigins)),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig(config.HSTS)),
	)
	return r
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", r.h.Metrics.Handler())
	if r.config.UploadsPath != "" && r.config.UploadsDir != "" {
		// audio notes are streamed by the patient handler after authorization
		r.engine.Static(
			path.Join(r.config.UploadsPath, storage.Image.Name),
			filepath.Join(r.config.UploadsDir, storage.Image.Name),
		)
	}

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.h.Health.RegisterRoutes(api)

	api.Use(
		middleware.SizeLimit(r.sizeLimitConfig()),
		middleware.Timeout(r.timeoutConfig()),
	)

	r.setupPublicRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.setupProtectedRoutes(protected)
}

func (r *Router) setupPublicRoutes(rg *gin.RouterGroup) {
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  r.config.RateLimit,
		Burst: r.config.RateBurst,
	})
	cache := middleware.Cache(middleware.PublicCacheConfig())

	r.h.Auth.RegisterPublicRoutes(rg, limiter.RateLimit())
	r.h.Message.RegisterPublicRoutes(rg, limiter.RateLimit())

	r.h.User.RegisterPublicRoutes(rg)
	r.h.Appointment.RegisterPublicRoutes(rg)
	r.h.Post.RegisterPublicRoutes(rg, cache)
	r.h.Activity.RegisterPublicRoutes(rg, cache)
	r.h.Carousel.RegisterPublicRoutes(rg, cache)
}

func (r *Router) setupProtectedRoutes(rg *gin.RouterGroup) {
	r.h.Auth.RegisterRoutes(rg)
	r.h.User.RegisterRoutes(rg)
	r.h.Patient.RegisterRoutes(rg)
	r.h.Appointment.RegisterRoutes(rg)
	r.h.StatusRequest.RegisterRoutes(rg)
	r.h.Post.RegisterRoutes(rg)
	r.h.Activity.RegisterRoutes(rg)
	r.h.Message.RegisterRoutes(rg)
	r.h.Finance.RegisterRoutes(rg)
	r.h.Carousel.RegisterRoutes(rg)
}

func (r *Router) sizeLimitConfig() middleware.SizeLimitConfig {
	cfg := middleware.DefaultSizeLimitConfig()
	if r.config.MaxBodyBytes > 0 {
		cfg.MaxBodySize = r.config.MaxBodyBytes
	}
	if r.config.MaxUploadBytes > 0 {
		cfg.MaxUploadSize = r.config.MaxUploadBytes
	}
	return cfg
}

func (r *Router) timeoutConfig() middleware.TimeoutConfig {
	cfg := middleware.DefaultTimeoutConfig()
	if r.config.RequestTimeout > 0 {
		cfg.Duration = r.config.RequestTimeout
	}
	return cfg
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
