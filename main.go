// @title Exam Portal 后端 API
// @version 1.0
// @description 在线考试平台后端：出卷、考试作答、自动评分与人工阅卷。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"exam_portal_backend/internal/app"
	"exam_portal_backend/internal/config"
	"exam_portal_backend/pkg/logger"
	"flag"
	"log"
)

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	seed := flag.String("seed", "", "启动前导入的种子 YAML 文件，例如 configs/seed.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly
	cfg.SeedFile = *seed

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	if cfg.SeedFile != "" {
		if err := application.Seed(cfg.SeedFile); err != nil {
			log.Fatalf("Failed to seed: %v", err)
		}
	}

	// 迁移完成后直接退出
	if cfg.MigrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	application.Run()
}
