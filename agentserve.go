// Package agentserve wires the service together: configuration, model
// provider, thread store, moderation gate, invocation engine, and the
// HTTP server.
package agentserve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentserve-dev/agentserve/agent"
	"github.com/agentserve-dev/agentserve/agents"
	"github.com/agentserve-dev/agentserve/engine"
	"github.com/agentserve-dev/agentserve/pkg/config"
	"github.com/agentserve-dev/agentserve/pkg/llm"
	"github.com/agentserve-dev/agentserve/pkg/moderation"
	"github.com/agentserve-dev/agentserve/pkg/observability"
	"github.com/agentserve-dev/agentserve/pkg/thread"
	"github.com/agentserve-dev/agentserve/pkg/thread/firestore"
	"github.com/agentserve-dev/agentserve/server"
)

// BuildProvider creates the chat model provider selected by cfg.
func BuildProvider(ctx context.Context, cfg *config.Config) (llm.ChatModel, error) {
	switch cfg.Provider.Name {
	case "openai":
		return llm.NewOpenAI(cfg.Provider.OpenAIKey, cfg.Provider.DefaultModel), nil
	case "bedrock":
		return llm.NewBedrock(ctx, llm.BedrockConfig{
			Region:       cfg.Provider.AWSRegion,
			Profile:      cfg.Provider.AWSProfile,
			DefaultModel: cfg.Provider.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}

// BuildStore creates the thread checkpoint store selected by cfg.
func BuildStore(ctx context.Context, cfg *config.Config) (thread.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return thread.NewMemoryStore(), nil
	case "file":
		return thread.NewFileStore(cfg.Store.Dir)
	case "redis":
		return thread.NewRedisStore(thread.RedisConfig{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
			Prefix:   cfg.Store.RedisPrefix,
			TTL:      cfg.Store.RedisTTL,
		})
	case "firestore":
		opts := []firestore.Option{
			firestore.WithProjectID(cfg.Store.GCPProject),
		}
		if cfg.Store.GCPCredentials != "" {
			opts = append(opts, firestore.WithCredentialsFile(cfg.Store.GCPCredentials))
		}
		if cfg.Store.Collection != "" {
			opts = append(opts, firestore.WithCollection(cfg.Store.Collection))
		}
		return firestore.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// BuildGate creates the moderation gate selected by cfg.
func BuildGate(cfg *config.Config) (moderation.Gate, error) {
	switch cfg.Moderation.Mode {
	case "disabled":
		return moderation.Disabled{}, nil
	case "keyword":
		return moderation.NewKeywordGate(), nil
	case "openai":
		return moderation.NewOpenAIGate(cfg.Moderation.OpenAIKey), nil
	default:
		return nil, fmt.Errorf("unknown moderation mode %q", cfg.Moderation.Mode)
	}
}

// Run starts the service and blocks until ctx is cancelled or the server
// fails.
func Run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	observability.InitMetrics()
	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(ctx, "agentserve", cfg.Tracing.Endpoint)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				log.Printf("trace shutdown error: %v", err)
			}
		}()
	}

	provider, err := BuildProvider(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := BuildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()
	gate, err := BuildGate(cfg)
	if err != nil {
		return err
	}

	registry := agent.NewRegistry()
	if err := agents.RegisterBuiltins(registry, provider); err != nil {
		return err
	}
	if _, err := registry.Get(cfg.DefaultAgent); err != nil {
		return fmt.Errorf("default agent: %w", err)
	}

	e := engine.New(registry, store, engine.WithModeration(gate))

	health := observability.NewHealthChecker()
	health.RegisterCheck(observability.StoreCheck(func(ctx context.Context) error {
		_, err := store.Load(ctx, "healthcheck")
		if err != nil && !errors.Is(err, thread.ErrThreadNotFound) {
			return err
		}
		return nil
	}))

	srv := server.New(e, server.Options{
		Addr:         cfg.Addr(),
		AuthSecret:   cfg.Server.AuthSecret,
		DefaultAgent: cfg.DefaultAgent,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		Health:       health,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("serving %d agents on %s", len(registry.List()), cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
