package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"moodlog/internal/ai"
	"moodlog/internal/config"
	"moodlog/internal/crypto"
	"moodlog/internal/db"
	"moodlog/internal/handlers"
	mw "moodlog/internal/middleware"
	"moodlog/internal/services"
	"moodlog/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is required")
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
	dbConn.SetMaxOpenConns(10)
	dbConn.SetConnMaxLifetime(2 * time.Hour)
	if err = dbConn.Ping(); err != nil {
		slog.Error("failed to ping db", slog.Any("err", err))
		os.Exit(1)
	}
	if err := db.RunMigrations(dbConn); err != nil {
		slog.Error("failed migrations", slog.Any("err", err))
		os.Exit(1)
	}

	cache, err := services.NewStatsCache(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", slog.Any("err", err))
		os.Exit(1)
	}
	if cache != nil {
		if err := cache.Ping(context.Background()); err != nil {
			slog.Warn("redis unreachable; stats cache disabled", slog.Any("err", err))
			cache = nil
		}
	}

	users := store.NewUserStore(dbConn, cipher)
	entries := store.NewEntryStore(dbConn, cipher)
	insights := store.NewInsightStore(dbConn)
	usage := store.NewUsageStore(dbConn)

	summarizer := buildSummarizer(cfg)
	insightSvc := services.NewInsightService(entries, insights, usage, summarizer, cfg.AITimeout)

	authHandler := handlers.NewAuthHandler(users, []byte(cfg.JWTSecret))
	entryHandler := handlers.NewEntryHandler(entries, cache, cfg.ReferenceOffset)
	statsHandler := handlers.NewStatsHandler(entries, cache, cfg.ReferenceOffset)
	insightHandler := handlers.NewInsightHandler(insightSvc)
	adminHandler := handlers.NewAdminHandler(users, entries, insights, usage)
	authMW := mw.NewAuthMiddleware([]byte(cfg.JWTSecret), users)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		slog.Error("could not build zap logger", slog.Any("err", err))
		os.Exit(1)
	}
	defer zapLogger.Sync()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(mw.RequestLogger(zapLogger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", authHandler.Register)
		api.Post("/auth/login", authHandler.Login)

		api.Group(func(pr chi.Router) {
			pr.Use(authMW.RequireAuth)

			pr.Get("/auth/me", authHandler.Me)
			pr.Post("/auth/change-password", authHandler.ChangePassword)

			pr.Post("/entries", entryHandler.Upsert)
			pr.Get("/entries", entryHandler.List)
			pr.Get("/entries/today", entryHandler.Today)
			pr.Get("/entries/range", entryHandler.Range)
			pr.Delete("/entries/{id}", entryHandler.Delete)

			pr.Get("/stats/overview", statsHandler.Overview)
			pr.Get("/stats/streak", statsHandler.Streak)
			pr.Get("/stats/weekly", statsHandler.Weekly)
			pr.Get("/stats/monthly", statsHandler.Monthly)

			pr.Get("/insights/monthly", insightHandler.Monthly)

			pr.Group(func(admin chi.Router) {
				admin.Use(authMW.RequireAdmin)
				admin.Get("/admin/dashboard", adminHandler.Dashboard)
				admin.Get("/admin/users", adminHandler.ListUsers)
				admin.Get("/admin/users/{id}", adminHandler.GetUser)
				admin.Patch("/admin/users/{id}", adminHandler.UpdateUser)
				admin.Delete("/admin/users/{id}", adminHandler.DeleteUser)
				admin.Get("/admin/ai-usage", adminHandler.AIUsage)
			})
		})
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		slog.Info("server starting", slog.String("addr", ":"+cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.Any("err", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutdown initiated")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	slog.Info("server stopped")
}

// buildSummarizer wires the provider fallback chain from configuration.
func buildSummarizer(cfg *config.Config) ai.Summarizer {
	var providers []ai.Summarizer
	for _, name := range cfg.AIProviders {
		switch name {
		case "gemini":
			providers = append(providers, ai.NewGeminiClient(cfg.RapidAPIKey, cfg.AITimeout))
		case "chatgpt":
			providers = append(providers, ai.NewChatGPTClient(cfg.RapidAPIKey, cfg.AITimeout))
		}
	}
	return ai.NewChain(providers...)
}
