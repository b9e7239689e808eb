package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"pdfqa/internal/domain"
	"pdfqa/internal/embedding/placeholder"
	"pdfqa/internal/index"
)

// Embedder backends.
const (
	BackendPlaceholder = "placeholder"
	BackendLexical     = "lexical"
	BackendOpenAI      = "openai"
	BackendRealModel   = "real-model"
)

// DocumentsConfig says where source documents live.
type DocumentsConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	// MaxRetries is nil when unset; 0 turns retries off.
	MaxRetries  *int   `yaml:"max_retries,omitempty"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Backend   string                `yaml:"backend"`
	Dimension int                   `yaml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type         string `yaml:"type"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// IndexConfig configures the persisted vector index.
type IndexConfig struct {
	Dir     string `yaml:"dir"`
	Metric  string `yaml:"metric"`
	Rebuild bool   `yaml:"rebuild"`
}

// QueryConfig controls retrieval and rendering of matches.
type QueryConfig struct {
	TopK            int `yaml:"top_k"`
	MaxSnippetChars int `yaml:"max_snippet_chars"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Documents DocumentsConfig `yaml:"documents"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Index     IndexConfig     `yaml:"index"`
	Query     QueryConfig     `yaml:"query"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. Values missing from the file keep
// their defaults; a missing file is domain.ErrNotFound.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: config file %s", domain.ErrNotFound, path)
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/pdfqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/pdfqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports settings no component could run with.
func (c *AppConfig) Validate() error {
	if c.Documents.Dir == "" {
		return fmt.Errorf("%w: documents.dir is empty", domain.ErrConfig)
	}
	if c.Chunker.Type != "recursive" {
		return fmt.Errorf("%w: unknown chunker %q", domain.ErrConfig, c.Chunker.Type)
	}
	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunker.chunk_size must be positive, got %d", domain.ErrConfig, c.Chunker.ChunkSize)
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("%w: chunker.chunk_overlap must be in [0, %d), got %d", domain.ErrConfig, c.Chunker.ChunkSize, c.Chunker.ChunkOverlap)
	}
	switch c.Embedder.Backend {
	case BackendPlaceholder, BackendLexical, BackendOpenAI, BackendRealModel:
	default:
		return fmt.Errorf("%w: unknown embedder backend %q", domain.ErrConfig, c.Embedder.Backend)
	}
	if c.Embedder.Dimension <= 0 {
		return fmt.Errorf("%w: embedder.dimension must be positive, got %d", domain.ErrConfig, c.Embedder.Dimension)
	}
	switch c.Index.Metric {
	case index.MetricCosine, index.MetricL2:
	default:
		return fmt.Errorf("%w: unknown index metric %q", domain.ErrConfig, c.Index.Metric)
	}
	if c.Index.Dir == "" {
		return fmt.Errorf("%w: index.dir is empty", domain.ErrConfig)
	}
	if c.Query.TopK < 0 {
		return fmt.Errorf("%w: query.top_k must not be negative, got %d", domain.ErrConfig, c.Query.TopK)
	}
	return nil
}

// Default returns the configuration the app runs with when no file is present.
func Default() *AppConfig {
	cfg := &AppConfig{
		Documents: DocumentsConfig{Dir: "content", Extensions: []string{".pdf"}},
		Chunker:   ChunkerConfig{Type: "recursive", ChunkSize: 1000, ChunkOverlap: 100},
		Embedder:  EmbedderConfig{Backend: BackendPlaceholder, Dimension: placeholder.DefaultDimension},
		Index:     IndexConfig{Dir: "vector_db", Metric: index.MetricCosine},
		Query:     QueryConfig{TopK: 3, MaxSnippetChars: 1000},
		Log:       LogConfig{Level: "info"},
	}
	return cfg
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pdfqa", "config.yaml"), nil
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "recursive"
	}
	if cfg.Embedder.Backend == "" {
		cfg.Embedder.Backend = BackendPlaceholder
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = index.MetricCosine
	}
	if len(cfg.Documents.Extensions) == 0 {
		cfg.Documents.Extensions = []string{".pdf"}
	}
	if cfg.Embedder.Backend == BackendOpenAI || cfg.Embedder.Backend == BackendRealModel {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.MaxRetries == nil {
			retries := 3
			cfg.Embedder.OpenAI.MaxRetries = &retries
		}
	}
}
