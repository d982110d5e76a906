package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/pielancer314/PizzaForPi/config"
	"github.com/pielancer314/PizzaForPi/database"
	"github.com/pielancer314/PizzaForPi/directory"
	"github.com/pielancer314/PizzaForPi/handler"
	"github.com/pielancer314/PizzaForPi/helper"
	"github.com/pielancer314/PizzaForPi/logger"
	"github.com/pielancer314/PizzaForPi/metrics"
	"github.com/pielancer314/PizzaForPi/model"
	"github.com/pielancer314/PizzaForPi/orders"
	"github.com/pielancer314/PizzaForPi/pinetwork"
	"github.com/pielancer314/PizzaForPi/realtime"
	"github.com/pielancer314/PizzaForPi/router"
	"github.com/pielancer314/PizzaForPi/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("service stopped", logger.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Settings, log logger.ILogger) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.PrometheusMetrics(cfg.ServiceName, reg)

	var (
		store       orders.Store
		users       directory.Users
		restaurants directory.Restaurants
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := database.ConnectDB(cfg, log)
		if err != nil {
			return err
		}
		store = orders.NewGormStore(db)
		users = directory.NewGormUsers(db)
		restaurants = directory.NewGormRestaurants(db)
	case config.StoreDriverMemory:
		log.Warning("using the in-memory store, data is lost on restart")
		store = orders.NewMemoryStore()
		users = directory.NewMemoryUsers()
		restaurants = directory.NewMemoryRestaurants()
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.DBSeed {
		if err := database.SeedData(ctx, users, restaurants, log); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	var pi pinetwork.Network
	if cfg.PiAPIKey != "" {
		pi = pinetwork.NewClient(cfg.PiAPIURL, cfg.PiAPIKey, cfg.PiTimeout, log)
	} else {
		log.Warning("PI_API_KEY is not set, payments run against the offline network")
		pi = pinetwork.NewOffline()
	}

	hubOpts := []realtime.HubOption{realtime.WithSendBuffer(cfg.WSSendBuffer)}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		hubOpts = append(hubOpts, realtime.WithBroker(realtime.NewRedisBroker(rdb, cfg.RedisChannel, log)))
	}

	// The hub authorizes order rooms through the service, which in turn
	// publishes through the hub.
	var svc *orders.Service
	hub := realtime.NewHub(realtime.Policy{
		Orders: func(ctx context.Context, p model.Principal, orderID string) error {
			return svc.CanWatch(ctx, p, orderID)
		},
	}, log, m, hubOpts...)

	var notifier orders.Notifier
	if cfg.SMTPHost != "" {
		notifier = utils.NewMailer(utils.MailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			AppURL:   cfg.AppURL,
		}, log)
	}

	svc = orders.NewService(orders.Deps{
		Store:       store,
		Restaurants: restaurants,
		Users:       users,
		Payments:    pi,
		Events:      hub,
		Notifier:    notifier,
		Metrics:     m,
		Logger:      log,
		ETA:         cfg.OrderETA,
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.ServiceName,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CorsOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Authorization, Accept",
		AllowCredentials: true,
		ExposeHeaders:    "Set-Cookie",
		MaxAge:           600,
	}))
	router.SetupRoutes(app, &handler.Handler{
		Orders:      svc,
		Users:       users,
		Restaurants: restaurants,
		Pi:          pi,
		Hub:         hub,
		Log:         log,
		JWTSecret:   cfg.JWTSecret,
		JWTTTL:      cfg.JWTTTL,
		AppURL:      cfg.AppURL,
	}, router.Options{Gatherer: reg, AccessLog: true})

	reconciler, err := helper.StartPaymentReconciler(svc, cfg.PaymentReconcileInterval, log)
	if err != nil {
		return fmt.Errorf("start payment reconciler: %w", err)
	}
	expiry, err := helper.StartUnpaidOrderExpiry(svc, cfg.UnpaidOrderSchedule, cfg.UnpaidOrderTTL, log)
	if err != nil {
		_ = reconciler.Shutdown()
		return fmt.Errorf("start unpaid order expiry: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.AppPort)
		log.Info("listening", logger.String("addr", addr), logger.String("store", cfg.StoreDriver))
		return app.Listen(addr)
	})
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		<-expiry.Stop().Done()
		if err := reconciler.Shutdown(); err != nil {
			log.Warning("stop payment reconciler", logger.Error(err))
		}
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
