package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ai-tutor/internal/assess"
	"ai-tutor/internal/auth"
	"ai-tutor/internal/chat"
	"ai-tutor/internal/config"
	"ai-tutor/internal/history"
	"ai-tutor/internal/llm"
	"ai-tutor/internal/server"
	"ai-tutor/internal/store"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	logger := newLogger(cfg.Debug)
	defer func() { _ = logger.Sync() }()

	var allowRepo auth.Repository
	if cfg.AllowlistFilePath != "" {
		repo, err := auth.NewFileRepository(cfg.AllowlistFilePath)
		if err != nil {
			logger.Warn("failed to init allowlist repo", zap.Error(err))
		} else {
			allowRepo = repo
		}
	}
	authSvc, err := auth.NewWithRepo(allowRepo, cfg.AllowedUsers)
	if err != nil {
		logger.Fatal("failed to init auth", zap.Error(err))
	}

	st, err := store.NewSQLiteStore(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer func() { _ = st.Close() }()

	oracle, err := llm.NewFactory(cfg).CreateClient(cfg.LLMProvider)
	if err != nil {
		logger.Fatal("failed to create llm client", zap.Error(err))
	}

	hist := history.NewManagerWithLimits(cfg.MaxMessageChars, cfg.MaxTranscriptChars)
	controller := chat.NewController(st, oracle, hist, logger)
	assessor := assess.NewAssessor(oracle, logger)

	scheduler := startMaintenance(cfg.MaintenanceCron, st, logger)
	if scheduler != nil {
		defer scheduler.Stop()
	}

	srv := server.New(cfg.ListenAddr, st, controller, assessor, authSvc, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	return logger
}

func startMaintenance(spec string, st *store.SQLiteStore, logger *zap.Logger) *cron.Cron {
	if spec == "" {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		pruned, err := st.Maintenance(context.Background())
		if err != nil {
			logger.Error("store maintenance failed", zap.Error(err))
			return
		}
		logger.Info("store maintenance complete", zap.Int64("pruned_feedback", pruned))
	})
	if err != nil {
		logger.Warn("invalid maintenance cron spec", zap.String("spec", spec), zap.Error(err))
		return nil
	}
	c.Start()
	return c
}
