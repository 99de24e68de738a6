package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/hall-calendar/internal/backup"
	"github.com/iliyamo/hall-calendar/internal/clock"
	"github.com/iliyamo/hall-calendar/internal/config"
	"github.com/iliyamo/hall-calendar/internal/database"
	"github.com/iliyamo/hall-calendar/internal/handler"
	"github.com/iliyamo/hall-calendar/internal/middleware"
	"github.com/iliyamo/hall-calendar/internal/queue"
	"github.com/iliyamo/hall-calendar/internal/repository"
	"github.com/iliyamo/hall-calendar/internal/router"
	"github.com/iliyamo/hall-calendar/internal/schema"
	"github.com/iliyamo/hall-calendar/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load() // Load environment config
	logger := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	startupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(startupCtx); err != nil {
		return err
	}
	if err := schema.Migrate(startupCtx, db, dialect); err != nil {
		return err
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig(), logger) // nil when Redis is unreachable
	if rdb != nil {
		defer rdb.Close()
	}

	clk := clock.NewSystem()
	users := repository.NewUserRepo(db, dialect)
	halls := repository.NewHallRepo(db, dialect)
	bookings := repository.NewBookingRepo(db, dialect)
	tokens := repository.NewTokenRepo(db, dialect)

	opts := []service.BookingServiceOption{service.WithLogger(logger)}
	if cfg.EventsEnabled {
		opts = append(opts, service.WithPublisher(queue.NewPublisher(cfg.RabbitMQURL, logger)))
		consumer := queue.NewConsumer(cfg.RabbitMQURL, os.Getenv("EVENT_LOG_DIR"), logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("booking consumer stopped", "err", err)
			}
		}()
	}
	bookingSvc := service.NewBookingService(bookings, halls, users, clk, opts...)
	backupSvc := backup.NewService(db, dialect, clk, logger)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency, "request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.LogAttrs(c.Request().Context(), slog.LevelWarn, "request", slog.Group("http", attrs...), slog.String("err", v.Error.Error()))
				return nil
			}
			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", slog.Group("http", attrs...))
			return nil
		},
	}))

	router.RegisterRoutes(e, handler.Health{DB: db})
	router.RegisterAuth(e,
		handler.NewAuthHandler(cfg, users, tokens, logger),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
	)
	bookingHandler := handler.NewBookingHandler(bookingSvc, clk, logger)
	router.RegisterPublic(e, bookingHandler, middleware.NewRedisCache(config.LoadCacheConfig(), rdb, logger))
	router.RegisterBookings(e, bookingHandler, cfg.JWTSecret)
	router.RegisterAdmin(e, handler.NewAdminHandler(bookingSvc, backupSvc, clk, logger), cfg.JWTSecret)

	addr := ":" + cfg.Port // Address string with port
	srvErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "driver", dialect.DriverName())
		srvErr <- e.Start(addr)
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
