// Package config loads application configuration from ~/.mentor/config.yaml
// and environment variables. Environment variables take precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string

	// Model selection
	GenerationModel string
	EmbeddingModel  string

	Thresholds Thresholds
	Retrieval  Retrieval
	Memory     Memory

	// Minimum interval between external embedding/generation calls.
	MinCallInterval time.Duration

	ConfigDir string
	DataDir   string
}

// Thresholds holds the confidence thresholds that gate human checkpoints.
type Thresholds struct {
	OCR      float64 `yaml:"ocr"`
	ASR      float64 `yaml:"asr"`
	Parser   float64 `yaml:"parser"`
	Verifier float64 `yaml:"verifier"`
}

// Retrieval holds knowledge-base retrieval settings.
type Retrieval struct {
	TopK         int `yaml:"top_k"`
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// Memory holds similarity-search settings for the problem memory.
type Memory struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxSimilarProblems  int     `yaml:"max_similar_problems"`
}

// FileConfig represents the structure of ~/.mentor/config.yaml.
type FileConfig struct {
	APIKeys    APIKeysConfig `yaml:"api_keys"`
	Generation string        `yaml:"generation_model"`
	Embedding  string        `yaml:"embedding_model"`
	Thresholds *Thresholds   `yaml:"thresholds"`
	Retrieval  *Retrieval    `yaml:"retrieval"`
	Memory     *Memory       `yaml:"memory"`
	DataDir    string        `yaml:"data_dir"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
}

// Load reads configuration from config files and environment variables.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		GenerationModel: getEnvOrDefault("MENTOR_GENERATION_MODEL", fileConfig.Generation),
		EmbeddingModel:  getEnvOrDefault("MENTOR_EMBEDDING_MODEL", fileConfig.Embedding),
		Thresholds:      DefaultThresholds(),
		Retrieval:       DefaultRetrieval(),
		Memory:          DefaultMemory(),
		MinCallInterval: 500 * time.Millisecond,
		ConfigDir:       configDir,
		DataDir:         fileConfig.DataDir,
	}

	if cfg.GenerationModel == "" {
		cfg.GenerationModel = "gemini-2.0-flash"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "gemini-embedding-001"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(configDir, "data")
	}

	if fileConfig.Thresholds != nil {
		overlayThresholds(&cfg.Thresholds, fileConfig.Thresholds)
	}
	if fileConfig.Retrieval != nil {
		overlayRetrieval(&cfg.Retrieval, fileConfig.Retrieval)
	}
	if fileConfig.Memory != nil {
		overlayMemory(&cfg.Memory, fileConfig.Memory)
	}
	applyEnvOverrides(cfg)

	return cfg, nil
}

// DefaultThresholds returns the stock confidence thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{OCR: 0.6, ASR: 0.7, Parser: 0.6, Verifier: 0.7}
}

// DefaultRetrieval returns the stock retrieval settings.
func DefaultRetrieval() Retrieval {
	return Retrieval{TopK: 2, ChunkSize: 800, ChunkOverlap: 50}
}

// DefaultMemory returns the stock memory settings.
func DefaultMemory() Memory {
	return Memory{SimilarityThreshold: 0.8, MaxSimilarProblems: 2}
}

// MemoryDBPath returns the path of the problem memory database.
func (c *Config) MemoryDBPath() string {
	return filepath.Join(c.DataDir, "memory.db")
}

// VectorDBPath returns the path of the knowledge vector database.
func (c *Config) VectorDBPath() string {
	return filepath.Join(c.DataDir, "vector.db")
}

// EmbeddingCachePath returns the path of the persisted embedding cache.
func (c *Config) EmbeddingCachePath() string {
	return filepath.Join(c.DataDir, "embedding_cache.json")
}

// EvidenceDir returns the directory holding run evidence bundles.
func (c *Config) EvidenceDir() string {
	return filepath.Join(c.DataDir, "runs")
}

// HasAdapter returns true if the API key for the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	default:
		return false
	}
}

func overlayThresholds(dst, src *Thresholds) {
	if src.OCR > 0 {
		dst.OCR = src.OCR
	}
	if src.ASR > 0 {
		dst.ASR = src.ASR
	}
	if src.Parser > 0 {
		dst.Parser = src.Parser
	}
	if src.Verifier > 0 {
		dst.Verifier = src.Verifier
	}
}

func overlayRetrieval(dst, src *Retrieval) {
	if src.TopK > 0 {
		dst.TopK = src.TopK
	}
	if src.ChunkSize > 0 {
		dst.ChunkSize = src.ChunkSize
	}
	if src.ChunkOverlap > 0 {
		dst.ChunkOverlap = src.ChunkOverlap
	}
}

func overlayMemory(dst, src *Memory) {
	if src.SimilarityThreshold > 0 {
		dst.SimilarityThreshold = src.SimilarityThreshold
	}
	if src.MaxSimilarProblems > 0 {
		dst.MaxSimilarProblems = src.MaxSimilarProblems
	}
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := envFloat("MENTOR_VERIFIER_THRESHOLD"); ok {
		cfg.Thresholds.Verifier = v
	}
	if v, ok := envFloat("MENTOR_OCR_THRESHOLD"); ok {
		cfg.Thresholds.OCR = v
	}
	if v, ok := envFloat("MENTOR_ASR_THRESHOLD"); ok {
		cfg.Thresholds.ASR = v
	}
	if v, ok := envFloat("MENTOR_SIMILARITY_THRESHOLD"); ok {
		cfg.Memory.SimilarityThreshold = v
	}
	if v := os.Getenv("MENTOR_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
}

func envFloat(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg // Missing file means defaults.
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &FileConfig{}
	}
	return cfg
}

func getConfigDir() (string, error) {
	if dir := os.Getenv("MENTOR_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".mentor"), nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
