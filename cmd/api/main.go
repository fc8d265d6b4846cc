package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/institute-api/internal/config"
	activityHandler "github.com/jwalitptl/institute-api/internal/handler/activity"
	appointmentHandler "github.com/jwalitptl/institute-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/institute-api/internal/handler/auth"
	carouselHandler "github.com/jwalitptl/institute-api/internal/handler/carousel"
	financeHandler "github.com/jwalitptl/institute-api/internal/handler/finance"
	"github.com/jwalitptl/institute-api/internal/handler/health"
	messageHandler "github.com/jwalitptl/institute-api/internal/handler/message"
	patientHandler "github.com/jwalitptl/institute-api/internal/handler/patient"
	postHandler "github.com/jwalitptl/institute-api/internal/handler/post"
	promHandler "github.com/jwalitptl/institute-api/internal/handler/prometheus"
	statusRequestHandler "github.com/jwalitptl/institute-api/internal/handler/statusrequest"
	userHandler "github.com/jwalitptl/institute-api/internal/handler/user"
	"github.com/jwalitptl/institute-api/internal/middleware"
	"github.com/jwalitptl/institute-api/internal/repository/postgres"
	redisRepo "github.com/jwalitptl/institute-api/internal/repository/redis"
	"github.com/jwalitptl/institute-api/internal/router"
	activityService "github.com/jwalitptl/institute-api/internal/service/activity"
	appointmentService "github.com/jwalitptl/institute-api/internal/service/appointment"
	authService "github.com/jwalitptl/institute-api/internal/service/auth"
	carouselService "github.com/jwalitptl/institute-api/internal/service/carousel"
	eventService "github.com/jwalitptl/institute-api/internal/service/event"
	financeService "github.com/jwalitptl/institute-api/internal/service/finance"
	messageService "github.com/jwalitptl/institute-api/internal/service/message"
	patientService "github.com/jwalitptl/institute-api/internal/service/patient"
	postService "github.com/jwalitptl/institute-api/internal/service/post"
	statusRequestService "github.com/jwalitptl/institute-api/internal/service/statusrequest"
	userService "github.com/jwalitptl/institute-api/internal/service/user"
	"github.com/jwalitptl/institute-api/internal/storage"
	jwtauth "github.com/jwalitptl/institute-api/pkg/auth"
	"github.com/jwalitptl/institute-api/pkg/logger"
	"github.com/jwalitptl/institute-api/pkg/messaging/redis"
	"github.com/jwalitptl/institute-api/pkg/metrics"
	"github.com/jwalitptl/institute-api/pkg/security"
)

const metricsNamespace = "institute"

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Setup(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	redisClient, err := redis.NewClient(ctx, cfg.Redis.ToBrokerConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisClient.Close()

	hours, err := cfg.Schedule.Hours()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid schedule")
	}

	store, err := storage.NewLocal(cfg.Storage.Root, cfg.Storage.PublicPath, cfg.Storage.MaxUploadBytes())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare upload storage")
	}

	var notes patientService.NotesCipher
	if cfg.Security.NotesKey != "" {
		cipher, err := security.NewFieldCipherFromBase64(cfg.Security.NotesKey)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid notes key")
		}
		notes = cipher
	} else {
		log.Warn().Msg("security.notes_key is not set, clinical notes are stored unencrypted")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.DB, cfg.Database.Name),
	)
	domainMetrics := metrics.NewDomain(registry, metricsNamespace)

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	audioNoteRepo := postgres.NewAudioNoteRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	statusRequestRepo := postgres.NewStatusRequestRepository(db)
	postRepo := postgres.NewPostRepository(db)
	activityRepo := postgres.NewActivityRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	carouselRepo := postgres.NewCarouselRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	tokenStore := redisRepo.NewTokenStore(redisClient)

	// Initialize services
	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost)
	jwt := jwtauth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry())
	eventSvc := eventService.NewService(outboxRepo)

	authSvc := authService.NewService(userRepo, tokenStore, hasher, jwt)
	userSvc := userService.NewService(userRepo, hasher)
	patientSvc := patientService.NewService(patientRepo, userRepo, audioNoteRepo, store, notes, domainMetrics)
	appointmentSvc := appointmentService.NewService(appointmentRepo, patientRepo, userRepo, eventSvc, hours, domainMetrics)
	statusRequestSvc := statusRequestService.NewService(statusRequestRepo, patientRepo, userRepo, eventSvc, domainMetrics)
	postSvc := postService.NewService(postRepo)
	activitySvc := activityService.NewService(activityRepo)
	messageSvc := messageService.NewService(messageRepo, userRepo, eventSvc, domainMetrics)
	financeSvc := financeService.NewService(appointmentRepo, hours.Location)
	carouselSvc := carouselService.NewService(carouselRepo, store, domainMetrics)

	created, err := authSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword, cfg.Bootstrap.AdminName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap administrator")
	}
	if created {
		log.Info().Str("email", cfg.Bootstrap.AdminEmail).Msg("bootstrap administrator created")
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc, cfg.JWT.CookieName),
		router.Handlers{
			Health:  health.NewHandler(db),
			Metrics: promHandler.New(registry, metricsNamespace),
			Auth: authHandler.NewHandler(authSvc, authHandler.CookieConfig{
				Name:   cfg.JWT.CookieName,
				Domain: cfg.JWT.CookieDomain,
				Secure: cfg.JWT.CookieSecure,
			}),
			User:          userHandler.NewHandler(userSvc),
			Patient:       patientHandler.NewHandler(patientSvc),
			Appointment:   appointmentHandler.NewHandler(appointmentSvc),
			StatusRequest: statusRequestHandler.NewHandler(statusRequestSvc),
			Post:          postHandler.NewHandler(postSvc),
			Activity:      activityHandler.NewHandler(activitySvc),
			Message:       messageHandler.NewHandler(messageSvc),
			Finance:       financeHandler.NewHandler(financeSvc),
			Carousel:      carouselHandler.NewHandler(carouselSvc),
		},
		router.RouterConfig{
			Mode:           cfg.Server.Mode,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RateLimit:      rate.Limit(cfg.Server.RateLimitRPS),
			RateBurst:      cfg.Server.RateLimitBurst,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			MaxUploadBytes: cfg.Storage.MaxUploadBytes(),
			RequestTimeout: cfg.Server.RequestTimeout,
			HSTS:           cfg.Server.HSTS,
			UploadsPath:    cfg.Storage.PublicPath,
			UploadsDir:     store.Root(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
