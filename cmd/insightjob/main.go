// Command insightjob generates last month's AI insights for every active
// user. Run with -once for a single pass (container cron), or without it to
// stay resident on the configured schedule.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"moodlog/internal/ai"
	"moodlog/internal/config"
	"moodlog/internal/crypto"
	"moodlog/internal/db"
	"moodlog/internal/services"
	"moodlog/internal/store"
)

func main() {
	once := flag.Bool("once", false, "run a single pass and exit")
	month := flag.String("month", "", "target month YYYY-MM (default: previous month)")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	encKey, err := config.DecodeKey(cfg.EncryptionKey)
	if err != nil {
		slog.Error("invalid ENCRYPTION_KEY", slog.Any("err", err))
		os.Exit(1)
	}
	indexKey, err := config.DecodeKey(cfg.BlindIndexKey)
	if err != nil {
		slog.Error("invalid BLIND_INDEX_KEY", slog.Any("err", err))
		os.Exit(1)
	}
	cipher, err := crypto.NewCipher(encKey, indexKey)
	if err != nil {
		slog.Error("could not build cipher", slog.Any("err", err))
		os.Exit(1)
	}

	dbConn, err := sqlx.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	dbConn.SetMaxOpenConns(5)
	if err = dbConn.Ping(); err != nil {
		slog.Error("failed to ping db", slog.Any("err", err))
		os.Exit(1)
	}
	if err := db.RunMigrations(dbConn); err != nil {
		slog.Error("failed migrations", slog.Any("err", err))
		os.Exit(1)
	}

	users := store.NewUserStore(dbConn, cipher)
	entries := store.NewEntryStore(dbConn, cipher)
	insights := store.NewInsightStore(dbConn)
	usage := store.NewUsageStore(dbConn)

	var providers []ai.Summarizer
	for _, name := range cfg.AIProviders {
		switch name {
		case "gemini":
			providers = append(providers, ai.NewGeminiClient(cfg.RapidAPIKey, cfg.AITimeout))
		case "chatgpt":
			providers = append(providers, ai.NewChatGPTClient(cfg.RapidAPIKey, cfg.AITimeout))
		}
	}

	insightSvc := services.NewInsightService(entries, insights, usage, ai.NewChain(providers...), cfg.AITimeout)
	runner := services.NewBatchRunner(users, insightSvc, cfg.BatchSize, cfg.BatchPause)

	run := func() {
		target := *month
		if target == "" {
			target = services.PreviousMonth(time.Now(), cfg.ReferenceOffset)
		}
		report, err := runner.Run(context.Background(), target)
		if err != nil {
			slog.Error("batch aborted", slog.Any("err", err))
			return
		}
		slog.Info("batch complete",
			slog.String("run_id", report.RunID),
			slog.String("month", report.Month),
			slog.Int("generated", report.Generated),
			slog.Int("skipped", report.Skipped),
			slog.Int("failed", report.Failed))
	}

	if *once {
		run()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.CronSpec, run); err != nil {
		slog.Error("invalid INSIGHT_CRON", slog.Any("err", err))
		os.Exit(1)
	}
	c.Start()
	slog.Info("insight job scheduled", slog.String("spec", cfg.CronSpec))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	<-c.Stop().Done()
}
