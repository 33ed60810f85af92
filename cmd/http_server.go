package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rakhadavedra/sow-analysis/internal"
	"github.com/rakhadavedra/sow-analysis/internal/admin"
	adminPostgres "github.com/rakhadavedra/sow-analysis/internal/admin/postgres"
	"github.com/rakhadavedra/sow-analysis/internal/audit"
	auditPostgres "github.com/rakhadavedra/sow-analysis/internal/audit/postgres"
	"github.com/rakhadavedra/sow-analysis/internal/auth"
	authPostgres "github.com/rakhadavedra/sow-analysis/internal/auth/postgres"
	"github.com/rakhadavedra/sow-analysis/internal/authz"
	authzPostgres "github.com/rakhadavedra/sow-analysis/internal/authz/postgres"
	"github.com/rakhadavedra/sow-analysis/internal/blobstore"
	"github.com/rakhadavedra/sow-analysis/internal/cache"
	"github.com/rakhadavedra/sow-analysis/internal/core/events"
	"github.com/rakhadavedra/sow-analysis/internal/document"
	documentPostgres "github.com/rakhadavedra/sow-analysis/internal/document/postgres"
	"github.com/rakhadavedra/sow-analysis/internal/llm"
	"github.com/rakhadavedra/sow-analysis/internal/prompt"
	promptPostgres "github.com/rakhadavedra/sow-analysis/internal/prompt/postgres"
	"github.com/rakhadavedra/sow-analysis/internal/report"
	"github.com/rakhadavedra/sow-analysis/internal/transport/rest"
	"github.com/rakhadavedra/sow-analysis/internal/user"
	userPostgres "github.com/rakhadavedra/sow-analysis/internal/user/postgres"
	"github.com/rakhadavedra/sow-analysis/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config          *internal.Config
	DB              *sqlx.DB
	Router          *chi.Mux
	Logger          *slog.Logger
	Cache           *cache.Store
	DocumentService *document.Service
	EventBus        *events.EventBus
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	env := "development"
	if config.Observability.Logging.Format == "json" {
		env = "production"
	}
	logger.Init(env, config.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	store, err := buildCache(config, lg)
	if err != nil {
		return nil, err
	}

	eventBus := events.NewEventBus(lg)

	// RBAC and navigation.
	authzRepo := authzPostgres.NewRepository(gormDB)
	authzService := authz.NewService(authzRepo, store, lg)

	// Authentication.
	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewRepository(gormDB), tokenGen, authzService, config.Security.BCryptCost, lg)
	authHandler := auth.NewHandler(authService, authzService)
	rbac := auth.NewRBACAuthorization(lg)

	// Audit trail and administration. The role and permission catalogs are
	// warmed up front so the admin list endpoints start out cache-hot.
	auditService := audit.NewService(auditPostgres.NewRepository(gormDB), lg)
	adminRepo := adminPostgres.NewRepository(gormDB)
	adminService := admin.NewService(adminRepo, authzService, auditService, authService, store, lg)
	adminHandler := admin.NewHandler(adminService, auditService)
	store.Warm(context.Background(), admin.NewReferenceLoader(adminRepo))

	// Profile management.
	userService := user.NewService(userPostgres.NewRepository(gormDB), config.Security.BCryptCost, lg)
	userHandler := user.NewHandler(userService)

	// Prompt catalog.
	promptService := prompt.NewService(promptPostgres.NewRepository(gormDB), store, lg)
	promptHandler := prompt.NewHandler(promptService)

	// Document pipeline, requires object storage.
	var documentService *document.Service
	var documentHandler *document.Handler
	var reportHandler *report.Handler
	if config.Storage.Endpoint != "" {
		blobs, err := blobstore.New(blobstore.Config{
			Endpoint:     config.Storage.Endpoint,
			AccessKey:    config.Storage.AccessKey,
			SecretKey:    config.Storage.SecretKey,
			UseSSL:       config.Storage.UseSSL,
			UploadBucket: config.Storage.UploadBucket,
			ResultBucket: config.Storage.ResultBucket,
			ReportBucket: config.Storage.ReportBucket,
		}, lg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize object storage: %w", err)
		}
		if err := blobs.EnsureBuckets(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to prepare storage buckets: %w", err)
		}

		llmClient := llm.NewClient(llm.Config{
			BaseURL:          config.LLM.BaseURL,
			APIKey:           config.LLM.APIKey,
			Model:            config.LLM.Model,
			RequestTimeout:   config.LLM.RequestTimeout,
			MaxRetries:       config.LLM.MaxRetries,
			RetryBackoffBase: config.LLM.RetryBackoffBase,
		}, lg)
		pipeline := document.NewPipeline(llmClient, document.PipelineConfig{
			MaxConcurrent:      config.LLM.MaxConcurrent,
			ChunkSize:          config.LLM.ChunkSize,
			MaxCharsSingleCall: config.LLM.MaxCharsSingleCall,
		}, lg)

		documentService = document.NewService(
			documentPostgres.NewRepository(gormDB),
			blobs, promptService, pipeline, eventBus,
			config.Storage.MaxUploadSizeMB, lg)
		documentHandler = document.NewHandler(documentService)

		reportService := report.NewService(documentService, blobs, config.Report.Enabled, config.Report.PrintTimeout, lg)
		reportHandler = report.NewHandler(reportService)

		// Uploads are processed in the background as they arrive.
		eventBus.Subscribe(events.EventTypeDocumentUploaded, func(ctx context.Context, event events.Event) error {
			uploaded, ok := event.(*events.DocumentUploadedEvent)
			if !ok {
				return nil
			}
			_, err := documentService.Analyze(context.Background(), uploaded.DocumentID)
			return err
		})
		eventBus.Subscribe(events.EventTypeDocumentProcessed, func(ctx context.Context, event events.Event) error {
			lg.Info("document lifecycle event",
				"event_type", event.EventType(),
				"event_id", event.EventID(),
				"payload", event.Payload())
			return nil
		})
	} else {
		lg.Warn("storage endpoint not configured, document endpoints disabled")
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, rest.Handlers{
		Auth:     authHandler,
		RBAC:     rbac,
		User:     userHandler,
		Document: documentHandler,
		Report:   reportHandler,
		Prompt:   promptHandler,
		Admin:    adminHandler,
		Cache:    store,
	}, config.Server.AllowedOrigins, lg)

	return &Dependencies{
		Config:          config,
		Logger:          lg,
		DB:              db,
		Router:          router,
		Cache:           store,
		DocumentService: documentService,
		EventBus:        eventBus,
	}, nil
}

func buildCache(config *internal.Config, lg *slog.Logger) (*cache.Store, error) {
	opts := cache.Options{
		TTLOverrides: map[cache.Category]time.Duration{
			cache.CategoryPermissions: config.Cache.PermissionTTL,
			cache.CategoryMenus:       config.Cache.MenuTTL,
			cache.CategoryRoles:       config.Cache.RoleTTL,
			cache.CategoryPrompts:     config.Cache.PromptTTL,
			cache.CategoryGeneral:     config.Cache.GeneralTTL,
		},
	}
	if config.Redis.Enabled {
		remote, err := cache.NewRedisRemote(config.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		opts.Remote = remote
	}
	return cache.NewStore(opts, lg), nil
}

func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
