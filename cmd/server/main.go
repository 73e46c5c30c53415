package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/cenkalti/backoff/v4"
	"github.com/joho/godotenv"

	"github.com/companionchat/companion-api/ai"
	"github.com/companionchat/companion-api/api"
	"github.com/companionchat/companion-api/api/validator"
	"github.com/companionchat/companion-api/postgres"
	"github.com/companionchat/companion-api/ratelimit"
	"github.com/companionchat/companion-api/redis"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", ":8080", "http service address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	rateLimit := getEnvInt("CHAT_RATE_LIMIT", ratelimit.DefaultLimit)

	ctx := context.Background()

	var pg *postgres.Postgres
	err := backoff.Retry(func() error {
		var err error
		pg, err = postgres.Connect(ctx, dsn)
		return err
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if err != nil {
		logger.Error("Could not connect to PostgreSQL", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("Connected to PostgreSQL")

	var cache *redis.Redis
	err = backoff.Retry(func() error {
		var err error
		cache, err = redis.Connect(ctx, redisAddr)
		return err
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if err != nil {
		logger.Error("Could not connect to Redis", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("Connected to Redis")

	providers := ai.ProvidersFromEnv(os.Getenv)
	enabled := 0
	for _, p := range providers {
		if p.Enabled {
			enabled++
		}
	}
	logger.Info("Configured AI providers", "enabled", enabled, "total", len(providers))

	srv := &api.API{
		Logger:  logger,
		DB:      pg,
		Cache:   cache,
		AI:      ai.NewClient(providers, logger),
		Limiter: ratelimit.New(rateLimit),
		Val:     validator.New(),
	}

	logger.Info("Server starting", "addr", *addr)
	if err := http.ListenAndServe(*addr, srv); err != nil {
		logger.Error("Server stopped", "error", err.Error())
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
