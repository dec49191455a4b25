// Package app assembles the command service from configuration. Both the
// Lambda entry point and the dev server build through here.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"

	"ai-commands/handler"
	"ai-commands/internal/config"
	"ai-commands/internal/dispatch"
	"ai-commands/internal/history"
	"ai-commands/internal/integrations/gemini"
	"ai-commands/internal/integrations/paramstore"
	"ai-commands/internal/interpreter"
	"ai-commands/internal/ratelimit"
	"ai-commands/internal/repository"
	"ai-commands/internal/resources"
	"ai-commands/internal/storage"
	"ai-commands/internal/usecase"
)

// Stores is everything the service persists. Both *repository.Client and
// *storage.DB satisfy it.
type Stores interface {
	ratelimit.Store
	history.Store
	resources.Store
}

var (
	_ Stores = (*repository.Client)(nil)
	_ Stores = (*storage.DB)(nil)
)

type App struct {
	Commands *usecase.CommandService
	Reports  *resources.Service
	Handler  *handler.Handler

	closers []func() error
}

// Open builds the App for cfg. AWS configuration is loaded only when the
// store driver or the key source needs it.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	var (
		awsCfg    aws.Config
		awsLoaded bool
	)
	loadAWS := func() (aws.Config, error) {
		if awsLoaded {
			return awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
		}
		awsCfg, awsLoaded = c, true
		return awsCfg, nil
	}

	var (
		stores  Stores
		closers []func() error
	)
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := storage.NewDB(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		stores = db
		closers = append(closers, db.Close)
	case config.DriverDynamoDB:
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		repo, err := repository.New(awsdynamodb.NewFromConfig(c), cfg.StateTable)
		if err != nil {
			return nil, err
		}
		stores = repo
	default:
		return nil, fmt.Errorf("app: unsupported store driver %q", cfg.StoreDriver)
	}

	var secrets gemini.SecretGetter
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		c, err := loadAWS()
		if err != nil {
			return nil, closeAll(closers, err)
		}
		ps, err := paramstore.New(awsssm.NewFromConfig(c))
		if err != nil {
			return nil, closeAll(closers, err)
		}
		secrets = ps
	}

	a, err := Build(cfg, stores, secrets, log)
	if err != nil {
		return nil, closeAll(closers, err)
	}
	a.closers = closers
	return a, nil
}

// Build wires the services on top of stores. secrets may be nil when
// cfg.GeminiAPIKey is set.
func Build(cfg *config.Config, stores Stores, secrets gemini.SecretGetter, log zerolog.Logger) (*App, error) {
	if stores == nil {
		return nil, errors.New("app: stores must not be nil")
	}
	loc := cfg.Location()
	now := func() time.Time { return time.Now().In(loc) }

	keys, err := keySource(cfg, secrets)
	if err != nil {
		return nil, err
	}
	gen, err := gemini.NewClient(keys,
		gemini.WithBaseURL(cfg.GeminiBaseURL),
		gemini.WithModel(cfg.GeminiModel),
		gemini.WithTimeout(cfg.InterpreterTimeout),
	)
	if err != nil {
		return nil, err
	}
	interp, err := interpreter.New(gen, log,
		interpreter.WithTimeout(cfg.InterpreterTimeout),
		interpreter.WithClock(now),
	)
	if err != nil {
		return nil, err
	}

	limiter, err := ratelimit.New(stores,
		ratelimit.WithCapacity(cfg.TokenCapacity),
		ratelimit.WithWindow(cfg.TokenWindow),
		ratelimit.WithResetPhrase(cfg.ResetPhrase),
	)
	if err != nil {
		return nil, err
	}
	recorder, err := history.New(stores, history.WithLimit(cfg.HistoryLimit))
	if err != nil {
		return nil, err
	}
	svc, err := resources.New(stores, resources.WithClock(now))
	if err != nil {
		return nil, err
	}
	disp, err := dispatch.New(svc)
	if err != nil {
		return nil, err
	}

	commands, err := usecase.NewCommandService(limiter, interp, disp, recorder,
		log.With().Str("component", "commands").Logger(),
		usecase.WithLocation(loc),
	)
	if err != nil {
		return nil, err
	}
	h, err := handler.NewHandler(commands, svc, log.With().Str("component", "http").Logger())
	if err != nil {
		return nil, err
	}
	return &App{Commands: commands, Reports: svc, Handler: h}, nil
}

// Close releases the stores opened by Open.
func (a *App) Close() error {
	return closeAll(a.closers, nil)
}

func keySource(cfg *config.Config, secrets gemini.SecretGetter) (gemini.KeySource, error) {
	if key := strings.TrimSpace(cfg.GeminiAPIKey); key != "" {
		return gemini.StaticKey(key), nil
	}
	if secrets == nil {
		return nil, errors.New("app: GEMINI_API_KEY is empty and no secret store is configured")
	}
	return gemini.NewParamStoreKey(secrets, cfg.APIKeyParameter())
}

func closeAll(closers []func() error, err error) error {
	errs := []error{err}
	for _, c := range closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
