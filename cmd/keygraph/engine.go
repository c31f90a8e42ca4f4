package keygraph

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veridoc/keygraph"
	"github.com/veridoc/keygraph/pkg/config"
	"github.com/veridoc/keygraph/pkg/driver"
	"github.com/veridoc/keygraph/pkg/embedder"
	"github.com/veridoc/keygraph/pkg/logger"
	"github.com/veridoc/keygraph/pkg/metrics"
	"github.com/veridoc/keygraph/pkg/nlp"
)

func newLogger(cfg *config.Config) *slog.Logger {
	return logger.NewDefaultLogger(parseLogLevel(cfg.Log.Level))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initializeEngine wires the graph store, embedding and matching
// collaborators, and metrics into a ready-to-use engine.
func initializeEngine(cfg *config.Config, log *slog.Logger) (*keygraph.Client, *prometheus.Registry, error) {
	store, err := driver.New(driver.GraphProvider(cfg.Database.Driver), driver.Options{
		URI:      cfg.Database.URI,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		InMemory: cfg.Database.InMemory,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s store: %w", cfg.Database.Driver, err)
	}

	// Embedding client. Without an API key the engine falls back to
	// exact-string matching.
	var embedderClient embedder.Client
	if cfg.Embedding.APIKey != "" {
		switch cfg.Embedding.Provider {
		case "openai":
			embedderClient, err = embedder.NewOpenAIEmbedder(cfg.Embedding.APIKey, embedder.Config{
				Model:      cfg.Embedding.Model,
				BaseURL:    cfg.Embedding.BaseURL,
				BatchSize:  cfg.Embedding.BatchSize,
				Dimensions: cfg.Embedding.Dimensions,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
			}
		default:
			return nil, nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
		}
		if cfg.CircuitBreaker.Enabled {
			embedderClient = embedder.NewCircuitBreakerClient(embedderClient, embedder.BreakerConfig{
				MaxRequests:      cfg.CircuitBreaker.MaxRequests,
				Interval:         cfg.CircuitBreaker.Interval,
				Timeout:          cfg.CircuitBreaker.Timeout,
				ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
			}, log, "embedder")
		}
	}

	// Vocabulary matcher for exact mode, wrapped with retry and an
	// optional circuit breaker.
	var matcher keygraph.Matcher
	if cfg.Matcher.APIKey != "" {
		switch cfg.Matcher.Provider {
		case "openai":
			temperature := cfg.Matcher.Temperature
			maxTokens := cfg.Matcher.MaxTokens
			baseClient, err := nlp.NewOpenAIClient(cfg.Matcher.APIKey, nlp.Config{
				Model:       cfg.Matcher.Model,
				Temperature: &temperature,
				MaxTokens:   &maxTokens,
				BaseURL:     cfg.Matcher.BaseURL,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create matcher client: %w", err)
			}
			var client nlp.Client = nlp.NewRetryClient(baseClient, nlp.DefaultRetryConfig())
			if cfg.CircuitBreaker.Enabled {
				client = nlp.NewCircuitBreakerClient(client, nlp.BreakerConfig{
					MaxRequests:      cfg.CircuitBreaker.MaxRequests,
					Interval:         cfg.CircuitBreaker.Interval,
					Timeout:          cfg.CircuitBreaker.Timeout,
					ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
				}, log, "matcher")
			}
			matcher = nlp.NewVocabularyMatcher(client)
		default:
			return nil, nil, fmt.Errorf("unsupported matcher provider: %s", cfg.Matcher.Provider)
		}
	}

	engineCfg := &keygraph.Config{
		SimThreshold:        cfg.Retrieval.SimThreshold,
		TopKKeywords:        cfg.Retrieval.TopKKeywords,
		MaxDepth:            cfg.Retrieval.MaxDepth,
		EmbedMode:           cfg.Retrieval.EmbedMode && embedderClient != nil,
		RejectDuringRebuild: cfg.Retrieval.RejectWhileRebuild,
		EmbedTimeout:        time.Duration(cfg.Retrieval.EmbedTimeoutSeconds) * time.Second,
		ChunkSize:           cfg.Ingest.ChunkSize,
		ChunkOverlap:        cfg.Ingest.ChunkOverlap,
	}

	m := metrics.New()
	registry := prometheus.NewRegistry()
	if err := m.Register(registry); err != nil {
		return nil, nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	engine, err := keygraph.NewClient(store, embedderClient, engineCfg, &keygraph.Options{
		Matcher: matcher,
		Metrics: m,
		Logger:  log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}

	log.Info("engine initialized",
		"driver", cfg.Database.Driver,
		"embed_mode", engineCfg.EmbedMode,
		"sim_threshold", engineCfg.SimThreshold,
		"max_depth", engineCfg.MaxDepth)

	return engine, registry, nil
}
