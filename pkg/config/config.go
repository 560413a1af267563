// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/walteh/docmill/pkg/text"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 📦 ProviderArgs configures the transform service endpoint
type ProviderArgs struct {
	Model       string  `json:"model" yaml:"model" hcl:"model,optional"`                                           // Model name (e.g. gpt-4o)
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty" hcl:"base_url,optional"`              // OpenAI-compatible API base URL
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" hcl:"temperature,optional"`     // Sampling temperature for every call
	MaxRetries  int     `json:"max_retries,omitempty" yaml:"max_retries,omitempty" hcl:"max_retries,optional"`     // Attempts before the client gives up
	RetryDelay  float64 `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty" hcl:"retry_delay,optional"`     // Seconds between attempts
	APIKeyEnv   string  `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty" hcl:"api_key_env,optional"`     // Env var holding the API key
}

// 🔧 PipelineArgs configures the folder-processing run
type PipelineArgs struct {
	Workers        int         `json:"workers,omitempty" yaml:"workers,omitempty" hcl:"workers,optional"`                         // Worker pool size (concurrency cap)
	Delay          float64     `json:"delay,omitempty" yaml:"delay,omitempty" hcl:"delay,optional"`                               // Seconds slept after each consumed result
	Extension      string      `json:"extension,omitempty" yaml:"extension,omitempty" hcl:"extension,optional"`                   // Document extension to transform
	IgnorePatterns []string    `json:"ignore_patterns,omitempty" yaml:"ignore_patterns,omitempty" hcl:"ignore_patterns,optional"` // Glob patterns for files to skip entirely
	Replacements   []text.Rule `json:"replacements,omitempty" yaml:"replacements,omitempty" hcl:"replacement,block"`              // Cleanup rules applied to model output
}

// 📚 Config represents the complete configuration
type Config struct {
	Provider ProviderArgs  `json:"provider" yaml:"provider" hcl:"provider,block"`
	Pipeline *PipelineArgs `json:"pipeline,omitempty" yaml:"pipeline,omitempty" hcl:"pipeline,block"`
}

// Environment variables consulted when the config file leaves a value unset.
// MODEL_NAME, API_KEY and BASE_URL match what the standalone client reads.
const (
	EnvModel   = "MODEL_NAME"
	EnvAPIKey  = "API_KEY"
	EnvBaseURL = "BASE_URL"

	DefaultAPIKeyEnv = "DOCMILL_API_KEY"
)

// 🎯 Load loads the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	// Get parser
	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	// Parse config
	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// 🏭 Default returns a config populated with defaults and env fallbacks
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// 🔧 ApplyDefaults fills unset fields from the environment and defaults
func (cfg *Config) ApplyDefaults() {
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = os.Getenv(EnvModel)
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = os.Getenv(EnvBaseURL)
	}
	if cfg.Provider.Temperature == 0 {
		cfg.Provider.Temperature = 0.01
	}
	if cfg.Provider.MaxRetries == 0 {
		cfg.Provider.MaxRetries = 3
	}
	if cfg.Provider.RetryDelay == 0 {
		cfg.Provider.RetryDelay = 1.0
	}
	if cfg.Provider.APIKeyEnv == "" {
		cfg.Provider.APIKeyEnv = DefaultAPIKeyEnv
	}

	if cfg.Pipeline == nil {
		cfg.Pipeline = &PipelineArgs{}
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 30
	}
	if cfg.Pipeline.Delay == 0 {
		cfg.Pipeline.Delay = 0.5
	}
	if cfg.Pipeline.Extension == "" {
		cfg.Pipeline.Extension = ".md"
	}
}

// 🔑 APIKey resolves the API key from the configured env var, falling
// back to the generic API_KEY variable the standalone client uses.
func (cfg *Config) APIKey() string {
	if cfg.Provider.APIKeyEnv != "" {
		if key := os.Getenv(cfg.Provider.APIKeyEnv); key != "" {
			return key
		}
	}
	return os.Getenv(EnvAPIKey)
}

// 🔍 Validate checks if the configuration is valid
func (cfg *Config) Validate() error {
	if cfg.Provider.Model == "" {
		return errors.Errorf("provider.model is required (set it in the config file or via %s)", EnvModel)
	}
	if cfg.Provider.Temperature < 0 || cfg.Provider.Temperature > 2 {
		return errors.Errorf("provider.temperature must be between 0 and 2, got %v", cfg.Provider.Temperature)
	}
	if cfg.Provider.MaxRetries < 1 {
		return errors.Errorf("provider.max_retries must be at least 1, got %d", cfg.Provider.MaxRetries)
	}
	if cfg.Pipeline == nil {
		return errors.Errorf("pipeline settings are missing")
	}
	if cfg.Pipeline.Workers < 1 {
		return errors.Errorf("pipeline.workers must be at least 1, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.Delay < 0 {
		return errors.Errorf("pipeline.delay must not be negative, got %v", cfg.Pipeline.Delay)
	}
	if !strings.HasPrefix(cfg.Pipeline.Extension, ".") {
		return errors.Errorf("pipeline.extension must start with a dot, got %q", cfg.Pipeline.Extension)
	}
	if err := text.ValidateRules(cfg.Pipeline.Replacements); err != nil {
		return errors.Errorf("pipeline.replacements: %w", err)
	}
	return nil
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	base := cfg.Provider.BaseURL
	if base == "" {
		base = "default"
	}
	return fmt.Sprintf("%s@%s (workers=%d, delay=%.2fs)", cfg.Provider.Model, base, cfg.Pipeline.Workers, cfg.Pipeline.Delay)
}

// 🔧 YAMLParser implements the Parser interface for YAML files
type YAMLParser struct{}

func init() {
	Register(&YAMLParser{})
}

func (p *YAMLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml")
}

func (p *YAMLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

func init() {
	Register(&HCLParser{})
}

func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var cfg Config
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &cfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
