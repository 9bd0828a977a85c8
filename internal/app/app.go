package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/Crohnos/dnd-generator/internal/data/db"
	"github.com/Crohnos/dnd-generator/internal/data/repos"
	httpx "github.com/Crohnos/dnd-generator/internal/http"
	"github.com/Crohnos/dnd-generator/internal/observability"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *gorm.DB
	Repos    repos.Repos
	Clients  Clients
	Services Services
	Server   *httpx.Server
	Metrics  *observability.Metrics

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	metrics := observability.Init(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	gdb := pg.DB()
	if err := db.AutoMigrateAll(gdb); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.IntrospectionTimeout+5*time.Second)
	cat, err := loadCatalog(ctx, log, cfg)
	cancel()
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	reposet := repos.New(gdb, log)
	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}
	svcs, err := wireServices(gdb, log, reposet, clients, cat)
	if err != nil {
		clients.Bus.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           gdb,
		Repos:        reposet,
		Clients:      clients,
		Services:     svcs,
		Server:       wireServer(gdb, log, cfg, metrics, svcs),
		Metrics:      metrics,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the job worker and background collectors.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.Services.JobWorker.Start(ctx)
	a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
}

func (a *App) Run() error {
	addr := ":" + a.Cfg.Port
	a.Log.Info("Server listening", "addr", addr)
	return a.Server.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Log.Warn("Server shutdown failed", "error", err)
		}
	}
	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Wait()
	}
	a.Clients.Bus.Close()
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			a.Log.Warn("Postgres close failed", "error", err)
		}
	}
	a.Log.Sync()
}
