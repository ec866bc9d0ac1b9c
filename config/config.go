// Package config builds a ready-to-use Orchestrator from a declarative YAML
// description of the crew: manager, workers, providers, store and logging.
//
// Tool implementations are code and cannot be described in YAML; they are
// injected at build time via WithWorkerTools. Everything else — provider
// vendors and models, iteration ceilings, window sizes, the restricted
// worker list, continuity, the persistence backend — is data.
//
// Example crew file:
//
//	session_id: nightly-run
//	logging:
//	  level: info
//	  format: text
//	store:
//	  type: sqlite
//	  path: data/conversations.db
//	manager:
//	  instruction: You coordinate the crew.
//	  iteration_ceiling: 20
//	  restricted_workers: [calc]
//	  provider:
//	    vendor: openai
//	    model: gpt-4o-mini
//	workers:
//	  - name: research
//	    description: Finds and summarizes information
//	    continuity: true
//	    provider:
//	      vendor: anthropic
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentcrew"
	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/provider"
	"github.com/hupe1980/agentcrew/provider/anthropic"
	"github.com/hupe1980/agentcrew/provider/bedrock"
	"github.com/hupe1980/agentcrew/provider/openai"
	"github.com/hupe1980/agentcrew/store"
	"github.com/hupe1980/agentcrew/store/sqlite"
	"github.com/hupe1980/agentcrew/tool"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
)

// Config is the root of a crew description.
type Config struct {
	SessionID string         `yaml:"session_id"`
	Logging   LoggingConfig  `yaml:"logging"`
	Store     StoreConfig    `yaml:"store"`
	Manager   ManagerConfig  `yaml:"manager"`
	Workers   []WorkerConfig `yaml:"workers"`
}

// LoggingConfig selects level and format for the built-in slog logger. An
// empty level disables logging entirely (the NoOp logger).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// StoreConfig selects the conversation persistence backend. Supported types:
// "" / "none" (persistence disabled), "memory", "sqlite" (requires Path).
type StoreConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// ProviderConfig selects a model backend. Supported vendors: "openai",
// "anthropic", "bedrock", "mock". APIKeyEnv names an environment variable
// holding the key; unset, the vendor SDK's default credential chain applies.
type ProviderConfig struct {
	Vendor    string  `yaml:"vendor"`
	Model     string  `yaml:"model"`
	Region    string  `yaml:"region"` // bedrock only
	APIKeyEnv string  `yaml:"api_key_env"`
	MaxTokens int64   `yaml:"max_tokens"`
	Temp      float64 `yaml:"temperature"`
}

// ManagerConfig describes the coordinating agent.
type ManagerConfig struct {
	Name              string         `yaml:"name"`
	Instruction       string         `yaml:"instruction"`
	IterationCeiling  int            `yaml:"iteration_ceiling"`
	WindowSize        int            `yaml:"window_size"`
	RestrictedWorkers []string       `yaml:"restricted_workers"`
	Provider          ProviderConfig `yaml:"provider"`
}

// WorkerConfig describes one delegate agent.
type WorkerConfig struct {
	Name             string         `yaml:"name"`
	Description      string         `yaml:"description"`
	Instruction      string         `yaml:"instruction"`
	IterationCeiling int            `yaml:"iteration_ceiling"`
	WindowSize       int            `yaml:"window_size"`
	Continuity       bool           `yaml:"continuity"`
	Provider         ProviderConfig `yaml:"provider"`
}

// Load reads and parses a crew file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a crew description from YAML.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Manager.Provider.Vendor == "" {
		return fmt.Errorf("config: manager.provider.vendor is required")
	}
	seen := map[string]struct{}{}
	for i, w := range c.Workers {
		if w.Name == "" {
			return fmt.Errorf("config: workers[%d].name is required", i)
		}
		if _, dup := seen[w.Name]; dup {
			return fmt.Errorf("config: duplicate worker name %q", w.Name)
		}
		seen[w.Name] = struct{}{}
		if w.Provider.Vendor == "" {
			return fmt.Errorf("config: workers[%d].provider.vendor is required", i)
		}
	}
	return nil
}

// BuildOptions carries the code-level pieces a crew file cannot express.
type BuildOptions struct {
	// WorkerTools maps a worker name to its tool implementations.
	WorkerTools map[string][]tool.Tool
	// Providers overrides the built provider for the named agent (worker
	// name or manager name); used to inject scripted mocks in tests.
	Providers map[string]provider.Provider
}

// WithWorkerTools injects tool implementations for the named worker.
func WithWorkerTools(name string, tools ...tool.Tool) func(o *BuildOptions) {
	return func(o *BuildOptions) {
		if o.WorkerTools == nil {
			o.WorkerTools = map[string][]tool.Tool{}
		}
		o.WorkerTools[name] = append(o.WorkerTools[name], tools...)
	}
}

// WithProvider overrides the provider for the named agent.
func WithProvider(name string, p provider.Provider) func(o *BuildOptions) {
	return func(o *BuildOptions) {
		if o.Providers == nil {
			o.Providers = map[string]provider.Provider{}
		}
		o.Providers[name] = p
	}
}

// Build assembles the described crew: providers, store, logger, manager,
// workers, orchestrator.
func (c *Config) Build(optFns ...func(o *BuildOptions)) (*agentcrew.Orchestrator, error) {
	var buildOpts BuildOptions
	for _, fn := range optFns {
		fn(&buildOpts)
	}

	logger, err := buildLogger(c.Logging)
	if err != nil {
		return nil, err
	}

	convStore, err := buildStore(c.Store)
	if err != nil {
		return nil, err
	}

	managerName := c.Manager.Name
	if managerName == "" {
		managerName = agent.DefaultManagerName
	}

	managerProvider, err := resolveProvider(managerName, c.Manager.Provider, buildOpts)
	if err != nil {
		return nil, err
	}

	m := agent.NewManager(managerProvider, func(o *agent.ManagerOptions) {
		o.Name = managerName
		if c.Manager.Instruction != "" {
			o.Instruction = c.Manager.Instruction
		}
		if c.Manager.IterationCeiling > 0 {
			o.IterationCeiling = c.Manager.IterationCeiling
		}
		if c.Manager.WindowSize != 0 {
			o.WindowSize = c.Manager.WindowSize
		}
		o.RestrictedWorkers = c.Manager.RestrictedWorkers
	})

	orch := agentcrew.New(m, func(o *agentcrew.Options) {
		o.Store = convStore
		o.Logger = logger
		if c.SessionID != "" {
			o.SessionID = c.SessionID
		}
	})

	for _, wc := range c.Workers {
		workerProvider, err := resolveProvider(wc.Name, wc.Provider, buildOpts)
		if err != nil {
			return nil, err
		}

		wc := wc
		w := agent.NewWorker(wc.Name, workerProvider, func(o *agent.WorkerOptions) {
			if wc.Description != "" {
				o.Description = wc.Description
			}
			if wc.Instruction != "" {
				o.Instruction = wc.Instruction
			}
			if wc.IterationCeiling > 0 {
				o.IterationCeiling = wc.IterationCeiling
			}
			if wc.WindowSize != 0 {
				o.WindowSize = wc.WindowSize
			}
			o.Continuity = wc.Continuity
			o.Tools = buildOpts.WorkerTools[wc.Name]
		})
		orch.RegisterWorker(w)
	}

	return orch, nil
}

func resolveProvider(agentName string, cfg ProviderConfig, opts BuildOptions) (provider.Provider, error) {
	if p, ok := opts.Providers[agentName]; ok {
		return p, nil
	}
	return buildProvider(cfg)
}

func buildProvider(cfg ProviderConfig) (provider.Provider, error) {
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}

	switch cfg.Vendor {
	case "openai":
		return openai.NewProvider(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.MaxTokens
			}
			if cfg.Temp > 0 {
				o.Temperature = cfg.Temp
			}
			o.APIKey = apiKey
		}), nil
	case "anthropic":
		return anthropic.NewProvider(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
			if cfg.Temp > 0 {
				o.Temperature = cfg.Temp
			}
			o.APIKey = apiKey
		}), nil
	case "bedrock":
		return bedrock.NewProvider(func(o *bedrock.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.Region != "" {
				o.Region = cfg.Region
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int32(cfg.MaxTokens)
			}
			if cfg.Temp > 0 {
				o.Temperature = cfg.Temp
			}
		})
	case "mock":
		model := cfg.Model
		if model == "" {
			model = "mock-model"
		}
		return provider.NewMockProvider(model), nil
	default:
		return nil, fmt.Errorf("config: unsupported provider vendor %q", cfg.Vendor)
	}
}

func buildStore(cfg StoreConfig) (core.ConversationStore, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return store.NewInMemoryStore(), nil
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("config: store.path is required for the sqlite store")
		}
		return sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("config: unsupported store type %q", cfg.Type)
	}
}

func buildLogger(cfg LoggingConfig) (logging.Logger, error) {
	if cfg.Level == "" {
		return logging.NoOpLogger{}, nil
	}

	var level logging.LogLevel
	switch cfg.Level {
	case "debug":
		level = logging.LogLevelDebug
	case "info":
		level = logging.LogLevelInfo
	case "warn":
		level = logging.LogLevelWarn
	case "error":
		level = logging.LogLevelError
	default:
		return nil, fmt.Errorf("config: unsupported log level %q", cfg.Level)
	}

	format := cfg.Format
	if format == "" {
		format = "text"
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: format,
		Output: os.Stderr,
	}), nil
}
