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

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/jo-ticketing/internal/config"
	"github.com/iliyamo/jo-ticketing/internal/database"
	"github.com/iliyamo/jo-ticketing/internal/handler"
	"github.com/iliyamo/jo-ticketing/internal/media"
	"github.com/iliyamo/jo-ticketing/internal/middleware"
	"github.com/iliyamo/jo-ticketing/internal/queue"
	"github.com/iliyamo/jo-ticketing/internal/repository"
	"github.com/iliyamo/jo-ticketing/internal/router"
	"github.com/iliyamo/jo-ticketing/internal/service"
	"github.com/iliyamo/jo-ticketing/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Load()
	ticketCfg := config.LoadTicketConfig()
	queueCfg := config.LoadQueueConfig()
	if cfg.Debug {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
		slog.SetDefault(logger)
	}

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 60*time.Second)
	db, err := database.Open(openCtx, cfg)
	cancelOpen()
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancelMigrate()
	if err != nil {
		logger.Error("schema migration failed", "err", err)
		os.Exit(1)
	}

	rdb := config.NewRedisClient(logger)
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	// repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	reservations := repository.NewReservationRepo(db)
	tickets := repository.NewTicketRepo(db)
	offers := repository.NewOfferRepo(db)

	// services
	publisher := service.NewPublisher(queueCfg.URL, logger)
	signer := utils.NewTicketSigner(ticketCfg.SigningSecret, ticketCfg.TokenSalt)
	store := media.NewStore(ticketCfg.MediaRoot)
	reservationSvc := service.NewReservationService(reservations, logger)
	issuer := service.NewTicketIssuer(reservations, tickets, users, signer, store, publisher, logger)
	verifier := service.NewTicketVerifier(tickets, reservations, signer, logger)
	reader := service.NewTicketReader(tickets)
	catalog := service.NewCatalogService(offers, publisher, logger)

	// handlers
	urls := handler.URLs{BaseURL: ticketCfg.PublicBaseURL, MediaURL: ticketCfg.MediaURL}
	authH := handler.NewAuthHandler(cfg, users, tokens, logger)
	reservationH := handler.NewReservationHandler(reservationSvc, logger)
	ticketH := &handler.TicketHandler{Issuer: issuer, Verifier: verifier, Reader: reader, URLs: urls, Debug: cfg.Debug, Logger: logger}
	offerH := &handler.OfferHandler{
		Svc: catalog,
		Purge: func(ctx context.Context) error {
			return middleware.PurgeCache(ctx, rdb, cacheCfg.Prefix)
		},
		Logger: logger,
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency_ms", v.Latency.Milliseconds(), "request_id", v.RequestID, "ip", v.RemoteIP,
			}
			if v.Error != nil {
				logger.Error("request", append(attrs, "err", v.Error.Error())...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))

	verifyLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(config.ScopeVerify), rdb, logger)
	authLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(config.ScopeAuth), rdb, logger)
	cache := middleware.NewRedisCache(cacheCfg, rdb)

	router.RegisterRoutes(e, handler.Health(db), ticketCfg.MediaURL, ticketCfg.MediaRoot)
	router.RegisterAuth(e, authH, cfg.JWTSecret, authLimit)
	router.RegisterTicketing(e, reservationH, ticketH, cfg.JWTSecret, verifyLimit)
	router.RegisterCatalog(e, offerH, cfg.JWTSecret, cache)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// background subscribers; both reconnect on their own if the broker is down
	exporter := &queue.OfferExporter{
		Offers:    offers,
		Path:      queueCfg.OffersExportPath,
		MediaBase: queueCfg.OffersMediaBase,
		MediaURL:  ticketCfg.MediaURL,
	}
	go func() {
		if err := exporter.Export(ctx); err != nil {
			logger.Warn("initial offers export failed", "err", err)
		}
		_ = queue.Consume(ctx, queueCfg.URL, queue.OffersChangedQueue, exporter.Handle, logger)
	}()
	go func() {
		_ = queue.Consume(ctx, queueCfg.URL, queue.TicketsIssuedQueue, queue.TicketLogHandler(queueCfg.TicketLogDir), logger)
	}()

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "debug", cfg.Debug)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}
	logger.Info("server stopped")
}
