package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

const (
	defaultMaxTokens  = 2048
	defaultParallel   = 1
	defaultMaxWorkers = 8
	defaultTimeout    = 60 * time.Second
)

// Duration is a YAML-friendly duration: it accepts time.ParseDuration
// strings ("30s", "500ms") as well as bare numbers, read as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("config: duration must be a scalar, got %v", value.Kind)
	}
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		*d = 0
		return nil
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(v * float64(time.Second)))
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}

// Config is the validated run configuration: the list of models to
// evaluate plus global defaults. Immutable after Load.
type Config struct {
	ModelList []string `yaml:"model_list"`

	Temperature  float64  `yaml:"temperature,omitempty"`
	MaxTokens    int      `yaml:"max_tokens,omitempty"`
	NumExamples  int      `yaml:"num_examples,omitempty"`
	MaxWorkers   int      `yaml:"max_workers,omitempty"`
	RequestDelay Duration `yaml:"request_delay,omitempty"`
	Debug        bool     `yaml:"debug,omitempty"`

	Storage StorageConfig `yaml:"storage,omitempty"`

	Models map[string]*ModelConfig `yaml:",inline"`
}

// ModelConfig describes one model under evaluation. A model may carry
// several endpoints; work is spread across them.
type ModelConfig struct {
	Name         string     `yaml:"-"`
	ModelName    string     `yaml:"model_name,omitempty"`
	APIType      string     `yaml:"api_type,omitempty"`
	Endpoints    []Endpoint `yaml:"endpoints,omitempty"`
	SystemPrompt string     `yaml:"system_prompt,omitempty"`
	MaxTokens    int        `yaml:"max_tokens,omitempty"`
	Parallel     int        `yaml:"parallel,omitempty"`
	NumExamples  int        `yaml:"num_examples,omitempty"`
	RequestDelay Duration   `yaml:"request_delay,omitempty"`
}

// Endpoint is one reachable deployment of a model.
type Endpoint struct {
	BaseURL        string   `yaml:"api_base,omitempty"`
	BaseURLAlt     string   `yaml:"base_url,omitempty"`
	APIKey         string   `yaml:"api_key,omitempty"`
	Credentials    string   `yaml:"credentials,omitempty"`
	Scope          string   `yaml:"scope,omitempty"`
	ProfanityCheck *bool    `yaml:"profanity_check,omitempty"`
	VerifySSL      *bool    `yaml:"verify_ssl,omitempty"`
	Timeout        Duration `yaml:"timeout,omitempty"`
}

type StorageConfig struct {
	CachePath       string `yaml:"cache_path,omitempty"`
	LeaderboardPath string `yaml:"leaderboard_path,omitempty"`
}

// URL returns the endpoint base URL, accepting either config spelling.
func (e *Endpoint) URL() string {
	if v := strings.TrimSpace(e.BaseURL); v != "" {
		return v
	}
	return strings.TrimSpace(e.BaseURLAlt)
}

// EffectiveTimeout returns the per-request timeout for this endpoint.
func (e *Endpoint) EffectiveTimeout() time.Duration {
	if e.Timeout > 0 {
		return time.Duration(e.Timeout)
	}
	return defaultTimeout
}

// Load reads and validates a YAML config file. Credentials may also come
// from the environment (OPENAI_API_KEY, ANTHROPIC_API_KEY,
// GIGACHAT_CREDENTIALS), which take effect for endpoints that leave the
// corresponding field empty.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes and validates raw YAML config bytes.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	// The inline map also swallows scalar top-level keys; drop entries
	// that did not decode into a model block.
	for name, mc := range cfg.Models {
		if mc == nil || (len(mc.Endpoints) == 0 && mc.ModelName == "" && mc.APIType == "") {
			delete(cfg.Models, name)
		}
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultMaxWorkers
	}

	if len(cfg.ModelList) == 0 {
		return nil, errors.New("config: empty model_list")
	}

	for _, name := range cfg.ModelList {
		name = strings.TrimSpace(name)
		mc, ok := cfg.Models[name]
		if !ok || mc == nil {
			return nil, fmt.Errorf("config: model %q listed but not configured", name)
		}
		mc.Name = name
		if strings.TrimSpace(mc.ModelName) == "" {
			mc.ModelName = name
		}
		if strings.TrimSpace(mc.APIType) == "" {
			mc.APIType = "openai"
		}
		if mc.MaxTokens <= 0 {
			mc.MaxTokens = cfg.MaxTokens
		}
		if mc.Parallel <= 0 {
			mc.Parallel = defaultParallel
		}
		if mc.RequestDelay <= 0 {
			mc.RequestDelay = cfg.RequestDelay
		}
		applyEnvCredentials(mc)
		if err := validateModel(mc); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// Listed returns the configured models in model_list order.
func (c *Config) Listed() []*ModelConfig {
	out := make([]*ModelConfig, 0, len(c.ModelList))
	for _, name := range c.ModelList {
		if mc, ok := c.Models[strings.TrimSpace(name)]; ok && mc != nil {
			out = append(out, mc)
		}
	}
	return out
}

// ExamplesFor resolves the example-count limit for a model: the per-model
// override wins, then the global default, then 0 (all examples).
func (c *Config) ExamplesFor(mc *ModelConfig) int {
	if mc != nil && mc.NumExamples > 0 {
		return mc.NumExamples
	}
	if c.NumExamples > 0 {
		return c.NumExamples
	}
	return 0
}

func applyEnvCredentials(mc *ModelConfig) {
	for i := range mc.Endpoints {
		ep := &mc.Endpoints[i]
		if strings.TrimSpace(ep.APIKey) != "" || strings.TrimSpace(ep.Credentials) != "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(mc.APIType)) {
		case "gigachat":
			ep.Credentials = strings.TrimSpace(os.Getenv("GIGACHAT_CREDENTIALS"))
		case "anthropic", "claude":
			ep.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
		default:
			ep.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		}
	}
}

func validateModel(mc *ModelConfig) error {
	if len(mc.Endpoints) == 0 {
		return fmt.Errorf("config: model %q: no endpoints", mc.Name)
	}

	apiType := strings.ToLower(strings.TrimSpace(mc.APIType))
	for i := range mc.Endpoints {
		ep := &mc.Endpoints[i]
		switch apiType {
		case "gigachat":
			if strings.TrimSpace(ep.Credentials) == "" {
				return fmt.Errorf("config: model %q endpoint %d: missing credentials", mc.Name, i)
			}
		default:
			if strings.TrimSpace(ep.APIKey) == "" {
				return fmt.Errorf("config: model %q endpoint %d: missing api_key", mc.Name, i)
			}
		}
	}
	return nil
}
