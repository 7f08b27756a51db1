package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/walkidni/shelfshift-sub001/internal/config"
	"github.com/walkidni/shelfshift-sub001/internal/controller"
	"github.com/walkidni/shelfshift-sub001/internal/model"
	"github.com/walkidni/shelfshift-sub001/internal/repository"
	"github.com/walkidni/shelfshift-sub001/internal/router"
	"github.com/walkidni/shelfshift-sub001/internal/service"
	"github.com/walkidni/shelfshift-sub001/internal/task"
	"github.com/walkidni/shelfshift-sub001/pkg/database"
	"github.com/walkidni/shelfshift-sub001/pkg/fetch"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 2. 初始化数据库
	db := database.InitDB(cfg.Storage.DBPath, &model.ImportRecord{})

	// 3. 初始化依赖
	deps := initDependencies(cfg, db)

	// 4. 启动定时任务
	initTasks(cfg, deps)

	// 5. 初始化路由
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	router.InitRoutes(r, deps.ImportCtl, cfg.ImportCooldown())

	// 6. 启动服务
	startServer(cfg, r)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB         *gorm.DB
	ImportRepo repository.ImportRecordRepository
	Importer   *service.ImporterSvc
	History    *service.HistorySvc
	ImportCtl  *controller.ImportController
}

// initDependencies 初始化所有依赖
func initDependencies(cfg *config.Config, db *gorm.DB) *Dependencies {
	// -------- Repo 层 --------
	importRepo := repository.NewImportRecordRepository(db)

	// -------- 抓取客户端 --------
	client := fetch.NewClient(fetch.Options{
		Timeout:    cfg.FetchTimeout(),
		RetryCount: cfg.Fetch.RetryCount,
		UserAgent:  cfg.Fetch.UserAgent,
		Proxy:      cfg.Fetch.Proxy,
	})

	// -------- 平台管道 --------
	importer := service.NewImporterSvc(
		service.NewShopifySvc(client),
		service.NewWoocommerceSvc(client),
		service.NewSquarespaceSvc(client),
		service.NewAliexpressSvc(client, cfg.Import.RapidAPIKey),
		service.NewAmazonSvc(client, cfg.Import.RapidAPIKey, cfg.Import.AmazonDefaultCountry),
	)

	// -------- 业务服务 --------
	history := service.NewHistorySvc(importRepo)
	payloadLog := service.NewPayloadLogSvc(cfg.App.Debug, cfg.App.LogVerbosity)

	// -------- Controller 层 --------
	importCtl := controller.NewImportController(
		importer, history, payloadLog,
		cfg.App.Name, cfg.App.Debug,
	)

	return &Dependencies{
		DB:         db,
		ImportRepo: importRepo,
		Importer:   importer,
		History:    history,
		ImportCtl:  importCtl,
	}
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(cfg *config.Config, deps *Dependencies) {
	retention := task.NewRetentionTask(
		deps.ImportRepo,
		cfg.Storage.RetentionDays,
		cfg.Storage.RetentionCron,
	)
	retention.Start()

	log.Println("定时任务已启动")
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(cfg *config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 %s", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
