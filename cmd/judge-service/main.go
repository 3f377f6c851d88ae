package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"codedrill/internal/common/cache"
	"codedrill/internal/common/db"
	commonmw "codedrill/internal/common/http/middleware"
	"codedrill/internal/common/mq"
	"codedrill/internal/common/storage"
	"codedrill/internal/judge/prober"
	"codedrill/internal/judge/sandbox"
	"codedrill/internal/judge/sandbox/engine"
	"codedrill/internal/judge/sandbox/observer"
	"codedrill/internal/judge/sandbox/runner"
	"codedrill/internal/judge/sandbox/workspace"
	"codedrill/internal/submit/controller"
	submitRepo "codedrill/internal/submit/repository"
	"codedrill/internal/submit/service"
	taskRepo "codedrill/internal/task/repository"
	"codedrill/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "judge service stopped", zap.Error(err))
	}
}

func run(appCfg *AppConfig) error {
	ctx := context.Background()

	database, err := openDatabase(appCfg.Database)
	if err != nil {
		return fmt.Errorf("init database failed: %w", err)
	}
	defer func() {
		_ = database.Close()
	}()
	if err := taskRepo.EnsureSchema(ctx, database); err != nil {
		return fmt.Errorf("ensure task schema failed: %w", err)
	}
	if err := submitRepo.EnsureSchema(ctx, database); err != nil {
		return fmt.Errorf("ensure submission schema failed: %w", err)
	}

	dependencies := map[string]controller.Pinger{"database": database}

	var cacheClient cache.Cache
	if appCfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis.RedisConfig)
		if err != nil {
			return fmt.Errorf("init redis failed: %w", err)
		}
		defer func() {
			_ = redisCache.Close()
		}()
		cacheClient = redisCache
		dependencies["redis"] = redisCache
	}

	tasks := taskRepo.NewTaskRepository(database, cacheClient)
	if appCfg.Judge.TasksFile != "" {
		catalog, err := taskRepo.LoadCatalog(appCfg.Judge.TasksFile)
		if err != nil {
			return fmt.Errorf("load task catalog failed: %w", err)
		}
		if err := catalog.Seed(ctx, tasks); err != nil {
			return fmt.Errorf("seed task catalog failed: %w", err)
		}
	}

	var events service.EventPublisher
	if appCfg.Kafka.Enabled {
		producer, err := mq.NewKafkaProducer(appCfg.Kafka.KafkaConfig)
		if err != nil {
			return fmt.Errorf("init kafka failed: %w", err)
		}
		defer func() {
			_ = producer.Close()
		}()
		events = service.NewMQEventPublisher(producer, appCfg.Kafka.GradedTopic)
		dependencies["kafka"] = producer
	}

	var archiver service.Archiver
	if appCfg.Archive.Enabled {
		objStorage, err := storage.NewMinIOStorage(appCfg.Archive.MinIO)
		if err != nil {
			return fmt.Errorf("init minio failed: %w", err)
		}
		if err := objStorage.EnsureBucket(ctx, appCfg.Archive.MinIO.Bucket); err != nil {
			return fmt.Errorf("ensure archive bucket failed: %w", err)
		}
		objArchiver, err := service.NewObjectArchiver(objStorage, appCfg.Archive.MinIO.Bucket, appCfg.Archive.Prefix)
		if err != nil {
			return fmt.Errorf("init archiver failed: %w", err)
		}
		archiver = objArchiver
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observer.NewPrometheusRecorder(registry)
	if err != nil {
		return fmt.Errorf("init metrics failed: %w", err)
	}

	eng := engine.NewEngine(appCfg.Judge.Engine)
	drivers, err := runner.NewRegistry(eng, appCfg.Languages, metrics)
	if err != nil {
		return fmt.Errorf("init language drivers failed: %w", err)
	}
	workspaces := workspace.NewManager(appCfg.Judge.WorkRoot)
	verifier := sandbox.NewVerifier(drivers, workspaces)
	toolchains := prober.New(eng, appCfg.Languages, appCfg.Judge.WorkRoot, appCfg.Judge.ProbeTimeout)

	for id, ok := range toolchains.Probe(ctx) {
		if !ok {
			logger.Warn(ctx, "toolchain not reachable", zap.String("language", id))
		}
	}

	submitService, err := service.NewSubmitService(service.Config{
		Tasks:          tasks,
		Submissions:    submitRepo.NewSubmissionRepository(database),
		Verifier:       verifier,
		Cache:          cacheClient,
		Events:         events,
		Archiver:       archiver,
		MaxCodeBytes:   appCfg.Judge.MaxCodeBytes,
		WorkerPoolSize: appCfg.Judge.WorkerPoolSize,
		Timeouts:       appCfg.Judge.Timeouts,
	})
	if err != nil {
		return fmt.Errorf("init submit service failed: %w", err)
	}

	health := controller.NewHealthController(toolchains, dependencies)
	httpServer := buildHTTPServer(appCfg.Server, submitService, health, registry)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener failed: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "judge http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.String("work_root", workspaces.Root()),
			zap.Duration("write_timeout", appCfg.Server.WriteTimeout))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(stopCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	return nil
}

func openDatabase(cfg DatabaseConfig) (db.Database, error) {
	switch db.Dialect(cfg.Driver) {
	case db.DialectMySQL:
		return db.NewMySQL(cfg.MySQL)
	default:
		return db.NewSQLite(cfg.SQLite)
	}
}

func buildHTTPServer(cfg ServerConfig, submitService controller.SubmissionService, health *controller.HealthController, registry *prometheus.Registry) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())

	controller.RegisterRoutes(router, controller.NewSubmitController(submitService), health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
