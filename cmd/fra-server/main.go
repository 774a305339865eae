// cmd/fra-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fra-engine/internal/api"
	"fra-engine/internal/common/auth"
	awsclients "fra-engine/internal/common/aws"
	"fra-engine/internal/common/camunda"
	"fra-engine/internal/common/config"
	"fra-engine/internal/common/database"
	"fra-engine/internal/common/logger"
	"fra-engine/internal/common/observability"
	"fra-engine/internal/fra/assets"
	"fra-engine/internal/fra/engine"
	"fra-engine/internal/fra/mapping"
	"fra-engine/internal/fra/renderlog"
	"fra-engine/internal/fra/store"
	gd "fra-engine/internal/workers/fra/generate-document"
	"fra-engine/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting fra-server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis ---
	redis := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Elasticsearch (render log, optional) ---
	var renders *renderlog.Log
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled() {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, render log disabled", zap.Error(err))
			esClient = nil
		} else {
			renders = renderlog.New(esClient.Client, cfg.FRA.RenderLogIndex, log)
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Object storage ---
	s3Client, err := awsclients.NewS3Client(ctx, cfg.Storage)
	if err != nil {
		zapLog.Fatal("object storage client failed", zap.Error(err))
	}

	// --- Engine ---
	var bindings map[string]string
	if cfg.FRA.QuestionMapPath != "" {
		qm, err := registry.LoadQuestionMap(cfg.FRA.QuestionMapPath)
		if err != nil {
			zapLog.Fatal("question map load failed", zap.Error(err), zap.String("path", cfg.FRA.QuestionMapPath))
		}
		if errs := qm.Validate(mapping.KnownField); len(errs) > 0 {
			zapLog.Fatal("question map invalid", zap.Errors("errors", errs))
		}
		bindings = qm.Lookup()
	}

	resolver := assets.NewResolver(s3Client, assets.Config{
		Namespace:              cfg.Storage.Namespace,
		MaxPlaceholders:        cfg.FRA.MaxPlaceholders,
		MaxFilesPerPlaceholder: cfg.FRA.MaxFilesPerPlaceholder,
		SignedURLTTL:           time.Duration(cfg.Storage.SignedURLTTL) * time.Second,
		CallTimeout:            config.GetDuration(cfg.FRA.AssetCallTimeout),
		Budget:                 config.GetDuration(cfg.FRA.AssetBudget),
	}, log)

	fra := engine.New(
		store.NewPostgresStore(pg.DB, log),
		mapping.NewMapper(bindings, log),
		resolver,
		engine.Options{
			TemplateCategory: cfg.FRA.TemplateCategory,
			Version:          cfg.App.Version,
			EmbedPhotos:      cfg.FRA.EmbedPhotos,
		},
		log,
	)

	// --- Workers ---
	var workers []*camunda.CamundaWorker
	if cfg.Camunda.Enabled && config.IsWorkerEnabled(cfg, gd.TaskType) {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		zapLog.Info("Zeebe client connected successfully")

		deps := gd.Dependencies{
			Renderer:      fra,
			Archive:       s3Client,
			Observability: obs,
			Logger:        log,
		}
		if renders != nil {
			deps.Recorder = renders
		}
		if cfg.Notifications.SES.Enabled {
			ses, err := awsclients.NewSESClient(ctx, cfg.Notifications.AWSRegion, cfg.Notifications.SES.FromEmail)
			if err != nil {
				zapLog.Warn("SES client unavailable, email notifications disabled", zap.Error(err))
			} else {
				deps.Mailer = ses
			}
		}
		if cfg.Notifications.SNS.Enabled {
			sns, err := awsclients.NewSNSClient(ctx, cfg.Notifications.AWSRegion, cfg.Notifications.SNS.TopicARN)
			if err != nil {
				zapLog.Warn("SNS client unavailable, events disabled", zap.Error(err))
			} else {
				deps.Publisher = sns
			}
		}

		wc := config.GetWorkerConfig(cfg, gd.TaskType)
		handler := gd.NewHandler(gd.LoadConfig(cfg), deps)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), gd.TaskType, camunda.WorkerOptions{
			MaxJobsActive: wc.MaxJobsActive,
			Timeout:       config.GetDuration(wc.Timeout),
		}, handler, log))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", gd.TaskType))
	}

	// --- HTTP ---
	keycloak := auth.NewKeycloakClient(
		cfg.Auth.Keycloak.URL,
		cfg.Auth.Keycloak.Realm,
		cfg.Auth.Keycloak.ClientID,
		cfg.Auth.Keycloak.ClientSecret,
	)
	verifier := auth.NewVerifier(keycloak, redis.Client, time.Duration(cfg.Auth.CacheTTL)*time.Second, log)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(log))

	var history api.RenderHistory
	if renders != nil {
		history = renders
	}
	h := api.NewHandler(fra, history, log)
	checks := map[string]api.ReadinessCheck{
		"postgres": pg.Ping,
		"redis":    redis.Ping,
	}
	if esClient != nil {
		checks["elasticsearch"] = esClient.Ping
	}
	h.Register(router, h.RequireAuth(verifier), checks)

	srv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}

	zapLog.Info("fra-server stopped gracefully")
}
