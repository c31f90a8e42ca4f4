package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Matcher configuration
	Matcher MatcherConfig `mapstructure:"matcher"`

	// Retrieval configuration
	Retrieval RetrievalConfig `mapstructure:"retrieval"`

	// Ingest configuration
	Ingest IngestConfig `mapstructure:"ingest"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds graph store configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // neo4j, badger, memory
	URI      string `mapstructure:"uri"`    // bolt URI for neo4j, data dir for badger
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	InMemory bool   `mapstructure:"in_memory"` // badger only
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai, etc.
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// MatcherConfig holds configuration for the vocabulary matching model
type MatcherConfig struct {
	Provider    string  `mapstructure:"provider"` // openai
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// RetrievalConfig holds graph retrieval tuning
type RetrievalConfig struct {
	SimThreshold        float32 `mapstructure:"sim_threshold"`  // cosine floor for similarity edges and fuzzy matches
	TopKKeywords        int     `mapstructure:"top_k_keywords"` // fuzzy-match candidates per query keyword
	MaxDepth            int     `mapstructure:"max_depth"`      // expansion bound
	EmbedMode           bool    `mapstructure:"embed_mode"`     // embedding-assisted matching and similarity edges
	RejectWhileRebuild  bool    `mapstructure:"reject_while_rebuilding"`
	EmbedTimeoutSeconds int     `mapstructure:"embed_timeout_seconds"`
}

// IngestConfig holds document chunking configuration
type IngestConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.driver", "badger")
	viper.SetDefault("database.uri", "./keygraph_db")
	viper.SetDefault("database.username", "")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "")
	viper.SetDefault("database.in_memory", false)

	// Embedding defaults
	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.batch_size", 100)

	// Matcher defaults
	viper.SetDefault("matcher.provider", "openai")
	viper.SetDefault("matcher.model", "gpt-4o-mini")
	viper.SetDefault("matcher.temperature", 0.0)
	viper.SetDefault("matcher.max_tokens", 1024)

	// Retrieval defaults
	viper.SetDefault("retrieval.sim_threshold", 0.8)
	viper.SetDefault("retrieval.top_k_keywords", 1)
	viper.SetDefault("retrieval.max_depth", 1)
	viper.SetDefault("retrieval.embed_mode", true)
	viper.SetDefault("retrieval.reject_while_rebuilding", false)
	viper.SetDefault("retrieval.embed_timeout_seconds", 60)

	// Ingest defaults
	viper.SetDefault("ingest.chunk_size", 600)
	viper.SetDefault("ingest.chunk_overlap", 150)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if config.Matcher.APIKey == "" {
			config.Matcher.APIKey = apiKey
		}
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = apiKey
		}
	}

	// Neo4j credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		config.Database.Database = db
	}

	// Generic database settings
	if dbDriver := os.Getenv("DB_DRIVER"); dbDriver != "" {
		config.Database.Driver = dbDriver
	}
	if dbURI := os.Getenv("DB_URI"); dbURI != "" {
		config.Database.URI = dbURI
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// Retrieval settings
	if v := os.Getenv("SIM_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			config.Retrieval.SimThreshold = float32(f)
		}
	}
	if v := os.Getenv("TOP_K_KEYWORDS"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			config.Retrieval.TopKKeywords = k
		}
	}
	if v := os.Getenv("MAX_DEPTH"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			config.Retrieval.MaxDepth = d
		}
	}
}
