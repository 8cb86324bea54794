// Package config provides configuration loading and management for
// longform: model endpoints per capability, checkpoint persistence, and
// generation tuning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/longform/model"
)

// Config represents the complete longform configuration
type Config struct {
	Models     ModelsConfig     `yaml:"models"`
	NATS       NATSConfig       `yaml:"nats"`
	Generation GenerationConfig `yaml:"generation"`
	Output     OutputConfig     `yaml:"output"`
}

// ModelsConfig configures the model registry
type ModelsConfig struct {
	// Capabilities maps capability names (planning, drafting, reviewing,
	// fast) to preferred/fallback model chains. Empty = built-in defaults.
	Capabilities map[string]*model.CapabilityConfig `yaml:"capabilities"`
	// Endpoints maps model names to provider endpoints. Empty = built-in
	// defaults (local Ollama).
	Endpoints map[string]*model.EndpointConfig `yaml:"endpoints"`
	// Temperature controls randomness (0.0-1.0, default: 0.7)
	Temperature float64 `yaml:"temperature"`
	// Timeout is the maximum time to wait for one model response
	Timeout time.Duration `yaml:"timeout"`
}

// NATSConfig configures checkpoint persistence
type NATSConfig struct {
	// URL is the NATS server URL (empty = in-memory checkpoints only)
	URL string `yaml:"url"`
	// Bucket is the JetStream KV bucket for checkpoints
	Bucket string `yaml:"bucket"`
}

// GenerationConfig tunes the chapter pipeline
type GenerationConfig struct {
	// Concurrency bounds parallel chapter drafting (default: 3)
	Concurrency int `yaml:"concurrency"`
	// MinCompletionRatio is the fraction of chapters that must draft
	// successfully before fallbacks cover the rest (default: 0.6)
	MinCompletionRatio float64 `yaml:"min_completion_ratio"`
	// QualityThreshold is the minimum acceptable quality score (default: 70)
	QualityThreshold int `yaml:"quality_threshold"`
	// ChapterCount fixes the outline's chapter count (0 = model decides)
	ChapterCount int `yaml:"chapter_count"`
	// RequireApproval parks finished jobs for manual sign-off instead of
	// auto-completing
	RequireApproval bool `yaml:"require_approval"`
}

// OutputConfig configures manuscript output
type OutputConfig struct {
	// Dir is where finished manuscripts are written
	Dir string `yaml:"dir"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Models: ModelsConfig{
			Temperature: 0.7,
			Timeout:     3 * time.Minute,
		},
		NATS: NATSConfig{
			URL:    "",
			Bucket: "longform-checkpoints",
		},
		Generation: GenerationConfig{
			Concurrency:        3,
			MinCompletionRatio: 0.6,
			QualityThreshold:   70,
		},
		Output: OutputConfig{
			Dir: ".",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Models.Temperature < 0 || c.Models.Temperature > 1 {
		return fmt.Errorf("models.temperature must be between 0 and 1")
	}
	if c.Generation.Concurrency < 1 {
		return fmt.Errorf("generation.concurrency must be at least 1")
	}
	if c.Generation.MinCompletionRatio <= 0 || c.Generation.MinCompletionRatio > 1 {
		return fmt.Errorf("generation.min_completion_ratio must be in (0, 1]")
	}
	if c.Generation.QualityThreshold < 0 || c.Generation.QualityThreshold > 100 {
		return fmt.Errorf("generation.quality_threshold must be between 0 and 100")
	}
	if c.NATS.URL != "" && c.NATS.Bucket == "" {
		return fmt.Errorf("nats.bucket is required when nats.url is set")
	}
	return nil
}

// BuildRegistry constructs the model registry from the configured
// capability chains and endpoints, falling back to built-in defaults for
// anything unset.
func (c *Config) BuildRegistry() *model.Registry {
	registry := model.NewDefaultRegistry()
	for name, cfg := range c.Models.Capabilities {
		registry.SetCapability(model.ParseCapability(name), cfg)
	}
	for name, cfg := range c.Models.Endpoints {
		registry.SetEndpoint(name, cfg)
	}
	return registry
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Models
	for name, cfg := range other.Models.Capabilities {
		if c.Models.Capabilities == nil {
			c.Models.Capabilities = map[string]*model.CapabilityConfig{}
		}
		c.Models.Capabilities[name] = cfg
	}
	for name, cfg := range other.Models.Endpoints {
		if c.Models.Endpoints == nil {
			c.Models.Endpoints = map[string]*model.EndpointConfig{}
		}
		c.Models.Endpoints[name] = cfg
	}
	if other.Models.Temperature != 0 {
		c.Models.Temperature = other.Models.Temperature
	}
	if other.Models.Timeout != 0 {
		c.Models.Timeout = other.Models.Timeout
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Bucket != "" {
		c.NATS.Bucket = other.NATS.Bucket
	}

	// Generation
	if other.Generation.Concurrency != 0 {
		c.Generation.Concurrency = other.Generation.Concurrency
	}
	if other.Generation.MinCompletionRatio != 0 {
		c.Generation.MinCompletionRatio = other.Generation.MinCompletionRatio
	}
	if other.Generation.QualityThreshold != 0 {
		c.Generation.QualityThreshold = other.Generation.QualityThreshold
	}
	if other.Generation.ChapterCount != 0 {
		c.Generation.ChapterCount = other.Generation.ChapterCount
	}
	if other.Generation.RequireApproval {
		c.Generation.RequireApproval = true
	}

	// Output
	if other.Output.Dir != "" {
		c.Output.Dir = other.Output.Dir
	}
}
