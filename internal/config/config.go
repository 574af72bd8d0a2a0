// Package config loads and validates warren.yml, the static configuration of
// a Warren instance: the Redis connection, the instance namespace, and the
// producer registry. The stage graph itself is code, not configuration; this
// file only selects which producer serves which stage.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dyluth/warren/internal/conductor"
	"github.com/dyluth/warren/pkg/pipeline"
	"gopkg.in/yaml.v3"
)

// WarrenConfig represents the top-level warren.yml configuration.
type WarrenConfig struct {
	Version   string              `yaml:"version"`
	Instance  string              `yaml:"instance"`
	Redis     RedisConfig         `yaml:"redis"`
	Producers map[string]Producer `yaml:"producers"`
}

// RedisConfig specifies the Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// Producer represents a single producer registration.
type Producer struct {
	Stage    string   `yaml:"stage"`              // Stage the producer operates in
	Kind     string   `yaml:"kind"`               // Artifact kind it creates
	Requires []string `yaml:"requires,omitempty"` // Upstream kinds it reads
	Next     string   `yaml:"next,omitempty"`     // Stage entered when its artifact is approved
	Terminal bool     `yaml:"terminal,omitempty"` // True if approval transitions the stage

	// Retry bounds for the generate/validate loop
	MaxAttempts      int `yaml:"max_attempts,omitempty"`
	InitialBackoffMs int `yaml:"initial_backoff_ms,omitempty"`
}

// InitialBackoff returns the configured initial retry delay as a duration.
// Returns 0 when unset, which lets the producer default apply.
func (p *Producer) InitialBackoff() time.Duration {
	return time.Duration(p.InitialBackoffMs) * time.Millisecond
}

// Validate performs validation on the full configuration.
func (c *WarrenConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Instance == "" {
		return fmt.Errorf("instance name is required")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}

	if len(c.Producers) == 0 {
		return fmt.Errorf("no producers defined")
	}

	for name, p := range c.Producers {
		if err := p.Validate(name); err != nil {
			return err
		}
	}

	// Enforce unique artifact kinds: exactly one producer owns each kind.
	kindsSeen := make(map[string]string) // kind -> producerName
	for name, p := range c.Producers {
		if existing, exists := kindsSeen[p.Kind]; exists {
			return fmt.Errorf("duplicate artifact kind '%s' (producers '%s' and '%s'): each kind must have exactly one producer",
				p.Kind, existing, name)
		}
		kindsSeen[p.Kind] = name
	}

	return nil
}

// Validate performs validation on a single producer registration.
func (p *Producer) Validate(name string) error {
	stage := pipeline.Stage(p.Stage)
	if err := stage.Validate(); err != nil {
		return fmt.Errorf("producer '%s': %w", name, err)
	}

	if err := pipeline.ArtifactKind(p.Kind).Validate(); err != nil {
		return fmt.Errorf("producer '%s': %w", name, err)
	}

	for _, kind := range p.Requires {
		if err := pipeline.ArtifactKind(kind).Validate(); err != nil {
			return fmt.Errorf("producer '%s': invalid required kind: %w", name, err)
		}
	}

	if p.Terminal {
		next := pipeline.Stage(p.Next)
		if err := next.Validate(); err != nil {
			return fmt.Errorf("producer '%s': %w", name, err)
		}
		// The transition must exist in the static stage graph; a registration
		// naming a missing edge would otherwise only fail at approval time.
		if !conductor.LegalTransition(stage, next) {
			return fmt.Errorf("producer '%s': no stage edge %s -> %s", name, p.Stage, p.Next)
		}
	} else if p.Next != "" {
		return fmt.Errorf("producer '%s': next is only valid with terminal: true", name)
	}

	if p.MaxAttempts < 0 {
		return fmt.Errorf("producer '%s': max_attempts must be >= 0", name)
	}
	if p.InitialBackoffMs < 0 {
		return fmt.Errorf("producer '%s': initial_backoff_ms must be >= 0", name)
	}

	return nil
}

// Load reads and validates warren.yml from the specified path.
func Load(path string) (*WarrenConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config WarrenConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
