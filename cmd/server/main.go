package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wei-Shaw/fetchguard/internal/config"
	"github.com/Wei-Shaw/fetchguard/internal/handler"
	"github.com/Wei-Shaw/fetchguard/internal/pkg/logger"

	"go.uber.org/zap"
)

// 构建期通过 -ldflags "-X main.Version=... -X main.BuildType=..." 注入。
var (
	Version   = "dev"
	BuildType = "dev"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fetchguard %s (%s)\n", Version, BuildType)
		return
	}

	if err := run(); err != nil {
		log.Fatalf("fetchguard start failed: %v", err)
	}
}

func run() error {
	// 先于依赖装配初始化日志，provider 里的日志才有输出。Load 幂等，
	// 这里与 wire 内部各读一次配置。
	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		return err
	}
	defer logger.Sync()

	app, err := initializeApplication(handler.BuildInfo{Version: Version, BuildType: BuildType})
	if err != nil {
		return err
	}
	defer app.Cleanup()

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("server.listening",
			zap.String("addr", app.Server.Addr),
			zap.String("version", Version),
			zap.String("build_type", BuildType),
		)
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.L().Info("server.shutting_down", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
