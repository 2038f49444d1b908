package app

import (
	"context"
	"exam_portal_backend/internal/config"
	"exam_portal_backend/internal/controller"
	"exam_portal_backend/internal/repository"
	"exam_portal_backend/internal/service"
	"exam_portal_backend/pkg/configwatcher"
	"exam_portal_backend/pkg/database"
	"exam_portal_backend/pkg/logger"
	"exam_portal_backend/pkg/monitoring"
	"exam_portal_backend/pkg/security"
	"exam_portal_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configFile = "configs/config.yaml"

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user         *repository.UserRepository
	exam         *repository.ExamRepository
	submission   *repository.SubmissionRepository
	attemptLock  *repository.AttemptLockRepository
	announcement *repository.AnnouncementRepository
	schedule     *repository.ScheduleRepository
}

type services struct {
	auth         *service.AuthService
	storage      *service.StorageService
	exam         *service.ExamService
	attempt      *service.AttemptService
	grading      *service.GradingService
	export       *service.ExportService
	announcement *service.AnnouncementService
	schedule     *service.ScheduleService
	stats        *service.StatsService
	seed         *service.SeedService
}

type controllers struct {
	auth         *controller.AuthController
	exam         *controller.ExamController
	attempt      *controller.AttemptController
	announcement *controller.AnnouncementController
	schedule     *controller.ScheduleController
	admin        *controller.AdminController
	health       *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	repos := &repositories{
		user:         repository.NewUserRepository(db),
		exam:         repository.NewExamRepository(db),
		submission:   repository.NewSubmissionRepository(db),
		announcement: repository.NewAnnouncementRepository(db),
		schedule:     repository.NewScheduleRepository(db),
	}
	if rdb != nil {
		repos.attemptLock = repository.NewAttemptLockRepository(rdb)
	}
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	// 未启用 Redis 时必须传入 nil 接口，而不是 nil 指针
	var locker service.SubmitLocker
	if repos.attemptLock != nil {
		locker = repos.attemptLock
	}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.exam = service.NewExamService(repos.exam, repos.submission)
	s.attempt = service.NewAttemptService(repos.exam, repos.submission, locker, cfg.Attempt)
	s.grading = service.NewGradingService(repos.exam, repos.submission)
	s.export = service.NewExportService(repos.exam, repos.submission, s.storage)
	s.announcement = service.NewAnnouncementService(repos.announcement)
	s.schedule = service.NewScheduleService(repos.schedule, repos.exam)
	s.stats = service.NewStatsService(repos.user, repos.exam, repos.submission)
	s.seed = service.NewSeedService(repos.user, s.exam)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:         controller.NewAuthController(s.auth),
		exam:         controller.NewExamController(s.exam, s.export),
		attempt:      controller.NewAttemptController(s.attempt, s.grading),
		announcement: controller.NewAnnouncementController(s.announcement),
		schedule:     controller.NewScheduleController(s.schedule),
		admin:        controller.NewAdminController(s.stats),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// New 基于已建立的连接组装应用，rdb 可以为 nil
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(func(c *config.Config) {
		logger.SetMode(c.Server.Mode)
	})
	app.RegisterConfigCallback(func(c *config.Config) {
		services.attempt.SetPolicy(c.Attempt)
		logger.Log.Info("Attempt policy reloaded",
			zap.Bool("enforce_deadline", c.Attempt.EnforceDeadline),
			zap.Int("grace_seconds", c.Attempt.GraceSeconds))
	})

	return app
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := New(cfg, db, rdb)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	return app
}

// Seed 从 YAML 文件导入账号和试卷
func (a *App) Seed(path string) error {
	report, err := a.services.seed.SeedFromFile(context.Background(), path)
	if err != nil {
		return err
	}
	log.Printf("Seed: %d users created, %d updated, %d exams created, %d skipped",
		report.UsersCreated, report.UsersUpdated, report.ExamsCreated, report.ExamsSkipped)
	return nil
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	stopWatch := make(chan struct{})
	if _, err := os.Stat(configFile); err == nil {
		go func() {
			if err := configwatcher.WatchConfig(filepath.Clean(configFile), a.applyConfig, stopWatch); err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	close(stopWatch)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}

	log.Println("Server exiting")
}
