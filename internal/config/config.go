package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the JSON-file configuration for one exchange connection: which
// exchange family to speak, the default book depth to request, and the
// logging setup. It is intentionally small — subscription lists, API
// credentials and transport dial options are the caller's concern (see
// spec's "Out of scope" collaborators); this only covers what the ingestion
// pipeline itself needs to know about.
type Config struct {
	Exchange string       `json:"exchange"`
	Book     BookConfig   `json:"book"`
	Logger   LoggerConfig `json:"logger"`
}

// BookConfig controls the per-instrument book-maintenance pipeline.
type BookConfig struct {
	// DefaultDepth is the book depth this configuration names for its
	// subscriptions. Exchanges expose different fixed depths (1, 50, 200,
	// ...). Nothing in the module reads it on its own: callers pass it as the
	// depth argument of Subscribe, and internal/decode takes the depth from
	// the inbound topic string, not from this value.
	DefaultDepth int `json:"default_depth"`

	// WebsocketBufferEnabled, when true, batches incoming deltas up to
	// WebsocketBufferLimit before applying and sorting them, instead of
	// applying each delta as it arrives.
	WebsocketBufferEnabled bool `json:"websocket_buffer_enabled"`
	WebsocketBufferLimit   int  `json:"websocket_buffer_limit"`
}

// LoadConfig loads and validates configuration from a JSON file.
func LoadConfig(filePath string) (*Config, error) {
	if filePath == "" {
		return nil, fmt.Errorf("config file path cannot be empty")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filePath, err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Exchange == "" {
		return fmt.Errorf("exchange cannot be empty")
	}
	if err := c.Book.Validate(); err != nil {
		return fmt.Errorf("book: %w", err)
	}
	return nil
}

// Validate validates the book configuration.
func (b *BookConfig) Validate() error {
	if b.DefaultDepth <= 0 {
		return fmt.Errorf("default_depth must be greater than 0")
	}
	if b.WebsocketBufferEnabled && b.WebsocketBufferLimit < 1 {
		return fmt.Errorf("websocket_buffer_enabled is set but websocket_buffer_limit is unset")
	}
	return nil
}

// EffectiveBufferLimit returns the delta-batching limit this config implies:
// 0 (apply every delta immediately) when buffering is disabled, otherwise
// WebsocketBufferLimit. Pass the result straight into
// (*marketfeed.Connection).Subscribe's bufferLimit parameter.
func (b *BookConfig) EffectiveBufferLimit() int {
	if !b.WebsocketBufferEnabled {
		return 0
	}
	return b.WebsocketBufferLimit
}
