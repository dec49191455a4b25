package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"ai-commands/internal/app"
	"ai-commands/internal/config"
	"ai-commands/internal/logger"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.New()
	if err != nil {
		errLog := logger.New("ai-commands", "error")
		errLog.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	log := logger.New("ai-commands", cfg.LogLevel)

	// ---- Stores, clients and services ----
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to build service")
		os.Exit(1)
	}

	log.Info().Str("driver", cfg.StoreDriver).Str("model", cfg.GeminiModel).Msg("starting lambda handler")
	lambda.Start(a.Handler.Handle)
}
