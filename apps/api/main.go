package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	adminshandler "github.com/steelworks-digital/vms-server/domains/admins/be/handler"
	adminsrepo "github.com/steelworks-digital/vms-server/domains/admins/be/repo"
	adminsservice "github.com/steelworks-digital/vms-server/domains/admins/be/service"
	reportshandler "github.com/steelworks-digital/vms-server/domains/reports/be/handler"
	reportsservice "github.com/steelworks-digital/vms-server/domains/reports/be/service"
	visitorshandler "github.com/steelworks-digital/vms-server/domains/visitors/be/handler"
	visitorsrepo "github.com/steelworks-digital/vms-server/domains/visitors/be/repo"
	visitorsservice "github.com/steelworks-digital/vms-server/domains/visitors/be/service"
	platformauth "github.com/steelworks-digital/vms-server/platform/go/auth"
	platformlogging "github.com/steelworks-digital/vms-server/platform/go/logging"
	platformmiddleware "github.com/steelworks-digital/vms-server/platform/go/middleware"
	"github.com/steelworks-digital/vms-server/platform/go/persistence"
	"github.com/steelworks-digital/vms-server/platform/go/plantscope"
	"github.com/steelworks-digital/vms-server/platform/go/storage"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	JWTSecret       string        `env:"JWT_SECRET,required"`
	Timezone        string        `env:"TIMEZONE" envDefault:"Asia/Kolkata"`
	BatchStrategy   string        `env:"BATCH_STRATEGY" envDefault:"counter"` // counter | derive
	PlantGroupsPath string        `env:"PLANT_GROUPS_PATH"`                   // optional JSON document; built-in groups when unset
	StorageBackend  string        `env:"STORAGE_BACKEND" envDefault:"local"`  // local | s3
	StorageLocalDir string        `env:"STORAGE_LOCAL_DIR" envDefault:"./.data/uploads"`
	S3Bucket        string        `env:"S3_BUCKET"` // required when STORAGE_BACKEND=s3
	S3Region        string        `env:"S3_REGION"`
	S3Endpoint      string        `env:"S3_ENDPOINT"`
	S3PathStyle     bool          `env:"S3_PATH_STYLE" envDefault:"false"`
	S3PublicURL     string        `env:"S3_PUBLIC_URL"`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("load timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	plants := plantscope.Default()
	if cfg.PlantGroupsPath != "" {
		plants, err = plantscope.Load(cfg.PlantGroupsPath)
		if err != nil {
			logger.Fatal("load plant groups", zap.String("path", cfg.PlantGroupsPath), zap.Error(err))
		}
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	visitorStore, err := persistence.NewVisitorStore(pool)
	if err != nil {
		logger.Fatal("init visitor store", zap.Error(err))
	}

	counterStore, err := persistence.NewCounterStore(pool)
	if err != nil {
		logger.Fatal("init counter store", zap.Error(err))
	}

	adminStore, err := persistence.NewAdminStore(pool)
	if err != nil {
		logger.Fatal("init admin store", zap.Error(err))
	}

	var photoStore storage.BlobStore
	switch cfg.StorageBackend {
	case "local":
		if strings.TrimSpace(cfg.StorageLocalDir) == "" {
			logger.Fatal("storage local dir required when STORAGE_BACKEND=local")
		}
		photoStore, err = storage.NewLocalStore(cfg.StorageLocalDir, "uploads")
		if err != nil {
			logger.Fatal("init local storage", zap.Error(err))
		}
	case "s3":
		photoStore, err = storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			logger.Fatal("init s3 storage", zap.Error(err))
		}
	default:
		logger.Fatal("invalid STORAGE_BACKEND (use local or s3)", zap.String("backend", cfg.StorageBackend))
	}

	visitorRepo := visitorsrepo.NewPostgresRepository(visitorStore, counterStore)
	visitorService := visitorsservice.New(visitorRepo, visitorsservice.Config{
		Plants:   plants,
		Strategy: visitorsservice.BatchStrategy(cfg.BatchStrategy),
		Location: location,
	})
	visitorHTTPHandler := visitorshandler.New(visitorService, photoStore, logger)

	adminRepo := adminsrepo.NewPostgresRepository(adminStore)
	adminService := adminsservice.New(adminRepo, adminsservice.Config{
		JWTSecret: []byte(cfg.JWTSecret),
	})
	adminHTTPHandler := adminshandler.New(adminService, logger)

	reportService := reportsservice.New(visitorRepo, plants, location)
	reportHTTPHandler := reportshandler.New(reportService, logger)

	httpMetrics := platformmiddleware.NewHTTPMetrics()

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))
	rootRouter.Use(httpMetrics.Middleware)

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Handle("/metrics", httpMetrics.Handler())

	if cfg.StorageBackend == "local" {
		fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.StorageLocalDir)))
		rootRouter.Get("/uploads/*", fileServer.ServeHTTP)
	}

	apiRouter := chi.NewRouter()

	// Public surface: gate registration, identity lookup, admin login.
	apiRouter.Post("/visitors", visitorHTTPHandler.Register)
	apiRouter.Get("/visitors/search", visitorHTTPHandler.Search)
	apiRouter.Post("/auth/login", adminHTTPHandler.Login)

	jwtMiddleware := platformauth.JWT(
		platformauth.HS256Verifier([]byte(cfg.JWTSecret)),
		platformauth.DefaultCredentialExtractor,
	)

	apiRouter.Route("/admin", func(r chi.Router) {
		r.Use(jwtMiddleware)
		r.Use(platformauth.RequireAdmin)
		r.Use(platformmiddleware.RequestTrace)

		r.Get("/visitors", visitorHTTPHandler.List)
		r.Get("/visitors/{visitorID}", visitorHTTPHandler.Get)
		r.Patch("/visitors/{visitorID}/status", visitorHTTPHandler.UpdateStatus)
		r.Put("/visitors/{visitorID}", visitorHTTPHandler.UpdateDetails)
		r.Get("/reports/visitors", reportHTTPHandler.Export)

		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequireSuperAdmin)

			r.Patch("/visitors/{visitorID}/blacklist", visitorHTTPHandler.Blacklist)
			r.Delete("/visitors/{visitorID}", visitorHTTPHandler.Delete)
			r.Post("/admins", adminHTTPHandler.Create)
		})
	})

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
