package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type Config struct {
	Port         int             `json:"port"`
	LogConfig    LogConfig       `json:"log_config"`
	Store        StoreConfig     `json:"store"`
	Index        IndexConfig     `json:"index"`
	Chunking     ChunkingConfig  `json:"chunking"`
	Embedding    EmbeddingConfig `json:"embedding"`
	Retrieval    RetrievalConfig `json:"retrieval"`
	Generation   []ProviderRef   `json:"generation"`
	DocsDir      string          `json:"docs_dir"`
	ReingestCron string          `json:"reingest_cron"`
}

type LogConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
}

type StoreConfig struct {
	Backend        string `json:"backend"`
	BaseURL        string `json:"base_url"`
	AuthToken      string `json:"auth_token"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type IndexConfig struct {
	Name           string `json:"name"`
	Dimension      int    `json:"dimension"`
	SpaceType      string `json:"space_type"`
	Precision      string `json:"precision"`
	M              int    `json:"m"`
	EfConstruction int    `json:"ef_construction"`
}

// Overlap is a pointer so an explicit 0 (no overlap) survives decoding;
// only an absent field falls back to the default.
type ChunkingConfig struct {
	Size    int  `json:"size"`
	Overlap *int `json:"overlap"`
}

type EmbeddingConfig struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	APIKey        string `json:"api_key"`
	BaseURL       string `json:"base_url"`
	MaxBatchSize  int    `json:"max_batch_size"`
	MaxParallel   int    `json:"max_parallel"`
	RetryAttempts int    `json:"retry_attempts"`
}

// RelevanceFloor is a pointer for the same reason as ChunkingConfig.Overlap:
// an explicit 0 means "no floor" and must not be coerced to the default.
type RetrievalConfig struct {
	TopK           int      `json:"top_k"`
	Ef             int      `json:"ef"`
	RelevanceFloor *float64 `json:"relevance_floor"`
}

// ProviderRef names one generation backend in fallback priority order.
type ProviderRef struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "endee"
	}
	switch cfg.Store.Backend {
	case "endee":
		if cfg.Store.BaseURL == "" {
			return nil, fmt.Errorf("store.base_url is required for the endee backend")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("store.backend must be endee or memory")
	}
	if cfg.Index.Name == "" {
		return nil, fmt.Errorf("index.name is required")
	}
	if cfg.Index.Dimension == 0 {
		cfg.Index.Dimension = 384
	}
	if cfg.Index.SpaceType == "" {
		cfg.Index.SpaceType = "cosine"
	}
	if cfg.Index.Precision == "" {
		cfg.Index.Precision = "INT8D"
	}
	if cfg.Index.M == 0 {
		cfg.Index.M = 16
	}
	if cfg.Index.EfConstruction == 0 {
		cfg.Index.EfConstruction = 128
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 512
	}
	if cfg.Chunking.Overlap == nil {
		overlap := 50
		cfg.Chunking.Overlap = &overlap
	}
	if *cfg.Chunking.Overlap < 0 {
		return nil, fmt.Errorf("chunking.overlap must not be negative")
	}
	if *cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return nil, fmt.Errorf("chunking.overlap must be smaller than chunking.size")
	}
	if cfg.Embedding.Provider == "" {
		return nil, fmt.Errorf("embedding.provider is required")
	}
	if cfg.Embedding.Model == "" {
		return nil, fmt.Errorf("embedding.model is required")
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.Ef == 0 {
		cfg.Retrieval.Ef = 128
	}
	if cfg.Retrieval.RelevanceFloor == nil {
		floor := 0.5
		cfg.Retrieval.RelevanceFloor = &floor
	}
	if len(cfg.Generation) == 0 {
		return nil, fmt.Errorf("at least one generation provider is required")
	}
	for i, ref := range cfg.Generation {
		if ref.Provider == "" || ref.Model == "" {
			return nil, fmt.Errorf("generation[%d]: provider and model are required", i)
		}
	}
	return &cfg, nil
}
