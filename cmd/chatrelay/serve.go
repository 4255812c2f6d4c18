package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"gorm.io/gorm"

	"github.com/totegamma/chatrelay/client"
	"github.com/totegamma/chatrelay/internal/config"
	"github.com/totegamma/chatrelay/internal/infra/database"
	"github.com/totegamma/chatrelay/internal/infra/gateway"
	"github.com/totegamma/chatrelay/internal/infra/repository"
	"github.com/totegamma/chatrelay/internal/present/rest"
	restmiddleware "github.com/totegamma/chatrelay/internal/present/rest/middleware"
	"github.com/totegamma/chatrelay/internal/service"
	"github.com/totegamma/chatrelay/internal/usecase"
)

const userAgent = "chatrelay/1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, conf)
	},
}

type stores struct {
	db  *gorm.DB
	rdb *redis.Client
	mc  *memcache.Client
}

func openStores(ctx context.Context, conf config.Config) (*stores, error) {
	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}
	if err := database.MigratePostgres(db); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
	if err := database.PingRedis(ctx, rdb); err != nil {
		return nil, errors.Wrap(err, "failed to connect redis")
	}

	var mc *memcache.Client
	if conf.Server.MemcachedAddr != "" {
		mc = database.NewMemcached(conf.Server.MemcachedAddr)
	}

	return &stores{db: db, rdb: rdb, mc: mc}, nil
}

func (s *stores) healthChecks() []rest.HealthCheck {
	checks := []rest.HealthCheck{
		{Name: "postgres", Check: func(ctx context.Context) error {
			sqlDB, err := s.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		{Name: "redis", Check: func(ctx context.Context) error {
			return database.PingRedis(ctx, s.rdb)
		}},
	}
	if s.mc != nil {
		checks = append(checks, rest.HealthCheck{Name: "memcached", Check: func(ctx context.Context) error {
			return s.mc.Ping()
		}})
	}
	return checks
}

func newMappingUsecase(s *stores, conf config.Config, cl *client.Client) *usecase.MappingUsecase {
	source := gateway.NewSheetSource(cl, conf.Mapping.SheetURL)
	return usecase.NewMappingUsecase(repository.NewMappingRepository(s.db), source)
}

func serve(ctx context.Context, conf config.Config) error {
	if conf.Server.EnableTrace {
		shutdown, err := setupTraceProvider(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("failed to shutdown tracer", slog.String("error", err.Error()), slog.String("module", "main"))
			}
		}()
	}

	s, err := openStores(ctx, conf)
	if err != nil {
		return err
	}
	defer s.rdb.Close()

	cl := client.New(userAgent)

	slackGateway := gateway.NewSlackGateway(
		gateway.NewSlackClient(conf.Slack.BotToken, conf.Slack.APIURL),
		s.mc,
		conf.Slack.AdminChannel,
	)
	authService := service.NewAuthService(service.AuthConfig{
		SecretKey: conf.MagicLink.SecretKey,
		TestMode:  conf.MagicLink.TestMode,
		APIURL:    conf.MagicLink.APIURL,
	}, cl)
	signalService := service.NewSignalService(s.rdb)

	connectionRepo := repository.NewConnectionRepository(s.rdb)
	eventRepo := repository.NewEventRepository(s.rdb)

	mappingUsecase := newMappingUsecase(s, conf, cl)
	connectionUsecase := usecase.NewConnectionUsecase(connectionRepo, mappingUsecase, authService, slackGateway, signalService)
	relayUsecase := usecase.NewRelayUsecase(connectionRepo, signalService, eventRepo, slackGateway)

	handler := rest.NewHandler(
		connectionUsecase,
		relayUsecase,
		mappingUsecase,
		signalService,
		restmiddleware.NewAuthMiddleware(conf.Server.AdminToken),
		restmiddleware.NewSlackMiddleware(conf.Slack.SigningSecret),
		s.healthChecks()...,
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware(serviceName))
	}
	handler.RegisterRoutes(e)

	go func() {
		slog.Info("starting server", slog.String("addr", conf.Server.ListenAddr), slog.String("module", "main"))
		if err := e.Start(conf.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", slog.String("error", err.Error()), slog.String("module", "main"))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down", slog.String("module", "main"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
