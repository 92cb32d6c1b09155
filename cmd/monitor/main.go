package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/config"
	cronrunner "github.com/AlexFoxalt/EC-TG-Bot-v2/internal/cron"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/db"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/detector"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/handler"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/ingress"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/liveness"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/logger"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/monitor"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/notify"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository"
	gormrepository "github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository/gorm"
	redisrepository "github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository/redis"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/retry"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/service"
)

func main() {
	cfgPath := os.Getenv("PM_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PM_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	readyChecks := map[string]func(context.Context) error{}

	var heartbeats repository.HeartbeatRepository = store
	if cfg.Heartbeat.Store == config.HeartbeatStoreRedis {
		redisStore := redisrepository.NewHeartbeatStore(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.KeyPrefix)
		defer redisStore.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			logger.Warn("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
		heartbeats = redisStore
		readyChecks["redis"] = redisStore.Ping
	}

	source, err := liveness.New(cfg, heartbeats, logger.Named("liveness"))
	if err != nil {
		logger.Fatal("liveness source init failed", zap.Error(err))
	}

	engine := buildNotifyEngine(cfg, logger)
	subscriberSvc := &service.SubscriberService{Repo: store, DefaultLocale: cfg.Notify.DefaultLocale}
	heartbeatSvc := &service.HeartbeatService{Repo: heartbeats}
	statusSvc := &service.StatusService{Events: store, Cursors: store}

	job := &monitor.Job{
		Driver: &monitor.Driver{
			Label:        cfg.Monitor.Label,
			Source:       source,
			Detector:     &detector.Detector{Repo: store},
			Events:       store,
			Subscribers:  store,
			Fanout:       engine,
			Cursors:      store,
			ResumeCursor: cfg.Notify.ResumeCursor,
			Logger:       logger.Named("monitor"),
		},
		Logger: logger.Named("monitor"),
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.WriteAuditLog(logger.Named("api")))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Checks: readyChecks}
	healthHandler.Register(router)
	heartbeatHandler := &handler.HeartbeatHandler{
		Service: heartbeatSvc,
		Path:    cfg.Heartbeat.Path,
		Token:   cfg.Heartbeat.Token,
	}
	heartbeatHandler.Register(router)

	api := router.Group("/api/v1", handler.RequireBearer(cfg.API.Token))
	statusHandler := &handler.StatusHandler{Service: statusSvc}
	statusHandler.Register(api)
	subscriberHandler := &handler.SubscriberHandler{Service: subscriberSvc}
	subscriberHandler.Register(api)
	broadcastHandler := &handler.BroadcastHandler{Subscribers: subscriberSvc, Fanout: engine}
	broadcastHandler.Register(api)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mqttSub *ingress.MQTTSubscriber
	if cfg.MQTT.Enabled {
		mqttSub = ingress.NewMQTTSubscriber(cfg.MQTT, heartbeatSvc, logger.Named("mqtt"))
		if err := mqttSub.Start(ctx); err != nil {
			logger.Error("mqtt ingress disabled", zap.Error(err))
			mqttSub = nil
		}
	}

	cronRunner := cronrunner.New(logger, ctx)
	if _, err := cronRunner.Every(cfg.Monitor.PollInterval, job.Run); err != nil {
		logger.Fatal("schedule monitor failed", zap.Error(err))
	}
	cronRunner.Start()

	logger.Info("power monitor started",
		zap.String("mode", cfg.Monitor.Mode),
		zap.String("label", cfg.Monitor.Label),
		zap.Duration("poll_interval", cfg.Monitor.PollInterval),
		zap.String("http_addr", cfg.Server.HTTPAddr),
		zap.Bool("dry_run", cfg.Notify.DryRun),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	// The running tick and its deliveries finish before the server goes away.
	cronRunner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	if mqttSub != nil {
		mqttSub.Stop()
	}
	logger.Info("power monitor stopped", zap.Uint64("cursor", job.Cursor().EventID))
}

func buildNotifyEngine(cfg config.Config, logger *zap.Logger) *notify.Engine {
	var sender notify.Sender
	if cfg.Notify.DryRun {
		sender = notify.LogSender{Logger: logger.Named("dry-run")}
	} else {
		tg, err := notify.NewTelegramSender(cfg.Notify.TelegramToken)
		if err != nil {
			logger.Fatal("telegram sender init failed", zap.Error(err))
		}
		sender = tg
	}

	loc, err := time.LoadLocation(cfg.Notify.Timezone)
	if err != nil {
		logger.Warn("unknown notify timezone, using UTC", zap.String("timezone", cfg.Notify.Timezone), zap.Error(err))
		loc = time.UTC
	}
	composer := notify.Composer{
		Packs: notify.DefaultPacks(cfg.Notify.DefaultLocale),
		Night: notify.NightWindow{
			Start:    cfg.Notify.NightStartHour,
			End:      cfg.Notify.NightEndHour,
			Location: loc,
		},
		SurgeWarnAfter: cfg.Notify.SurgeWarnAfter,
	}
	return notify.NewEngine(sender, composer, notify.EngineConfig{
		RateLimitPerSec: cfg.Notify.RateLimitPerSec,
		MaxConcurrency:  cfg.Notify.MaxConcurrency,
		SendTimeout:     cfg.Notify.SendTimeout,
		Retry: retry.Policy{
			Attempts:    cfg.Notify.RetryAttempts,
			BaseDelay:   cfg.Notify.BackoffBase,
			MaxDelay:    cfg.Notify.BackoffCap,
			Jitter:      0.2,
			Classifiers: []retry.Classifier{notify.TelegramClassifier},
		},
	}, logger.Named("notify"))
}
