// Package config loads and validates Atlas Cortex runtime configuration.
// Configuration is read from ~/.cortex/atlas.yaml (or a path override) and
// merged with CORTEX_*-prefixed environment variables via viper. A watcher
// can be attached with Watch to hot-reload provider and guardrail settings
// without a restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for Atlas Cortex.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Context   ContextConfig   `mapstructure:"context" yaml:"context"`
	Memory    MemoryConfig    `mapstructure:"memory" yaml:"memory"`
	Guardrail GuardrailConfig `mapstructure:"guardrail" yaml:"guardrail"`
	Voice     VoiceConfig     `mapstructure:"voice" yaml:"voice"`
	Satellite SatelliteConfig `mapstructure:"satellite" yaml:"satellite"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
}

// ServerConfig controls bind address and storage root (CORTEX_HOST, CORTEX_PORT, CORTEX_DATA_DIR).
type ServerConfig struct {
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// LLMConfig selects and addresses the primary model provider plus per-role model overrides.
type LLMConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // LLM_PROVIDER
	URL      string `mapstructure:"url" yaml:"url"`           // LLM_URL
	APIKey   string `mapstructure:"api_key" yaml:"api_key,omitempty"`

	ModelFast      string `mapstructure:"model_fast" yaml:"model_fast"`
	ModelStandard  string `mapstructure:"model_standard" yaml:"model_standard"`
	ModelThinking  string `mapstructure:"model_thinking" yaml:"model_thinking"`
	ModelEmbedding string `mapstructure:"model_embedding" yaml:"model_embedding"`

	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// EmbeddingConfig addresses the embedding provider, which may differ from the chat provider.
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // EMBED_PROVIDER
	URL      string `mapstructure:"url" yaml:"url"`           // EMBED_URL
	Model    string `mapstructure:"model" yaml:"model"`       // EMBED_MODEL
}

// ContextConfig carries token-budget overrides for the Context Assembler.
type ContextConfig struct {
	Default        int `mapstructure:"default" yaml:"default"`                     // CONTEXT_DEFAULT
	Thinking       int `mapstructure:"thinking" yaml:"thinking"`                   // CONTEXT_THINKING
	MaxModelSizeMB int `mapstructure:"max_model_size_mb" yaml:"max_model_size_mb"` // MAX_MODEL_SIZE_MB
}

// MemoryConfig tunes the HOT/COLD memory subsystem.
type MemoryConfig struct {
	DBPath           string        `mapstructure:"db_path" yaml:"db_path"`
	VectorIndexDir   string        `mapstructure:"vector_index_dir" yaml:"vector_index_dir"`
	RRFConstantK     int           `mapstructure:"rrf_constant_k" yaml:"rrf_constant_k"`
	RapportStepUp    float64       `mapstructure:"rapport_step_up" yaml:"rapport_step_up"`
	RapportStepDown  float64       `mapstructure:"rapport_step_down" yaml:"rapport_step_down"`
	RapportDayDecay  float64       `mapstructure:"rapport_day_decay" yaml:"rapport_day_decay"`
	ColdQueueRetries int           `mapstructure:"cold_queue_retries" yaml:"cold_queue_retries"`
	JobInterval      time.Duration `mapstructure:"job_interval" yaml:"job_interval"`
}

// GuardrailConfig tunes the guardrail cage: static patterns, semantic exemplars,
// drift monitoring and the adaptive-learner admission gate.
type GuardrailConfig struct {
	PatternsPath        string        `mapstructure:"patterns_path" yaml:"patterns_path"`
	SemanticThreshold   float64       `mapstructure:"semantic_threshold" yaml:"semantic_threshold"`
	DriftWindow         int           `mapstructure:"drift_window" yaml:"drift_window"`
	KnownGoodCorpusPath string        `mapstructure:"known_good_corpus_path" yaml:"known_good_corpus_path"`
	LearnerMaxFPR       float64       `mapstructure:"learner_max_fpr" yaml:"learner_max_fpr"`
	ReloadDebounce      time.Duration `mapstructure:"reload_debounce" yaml:"reload_debounce"`
}

// VoiceConfig controls TTS Bridge behaviour.
type VoiceConfig struct {
	DefaultVoice    string `mapstructure:"default_voice" yaml:"default_voice"`
	NightModeStart  string `mapstructure:"night_mode_start" yaml:"night_mode_start"`
	NightModeEnd    string `mapstructure:"night_mode_end" yaml:"night_mode_end"`
	IncludePhonemes bool   `mapstructure:"include_phonemes" yaml:"include_phonemes"`
}

// SatelliteConfig addresses the satellite gateway's bidirectional transport.
type SatelliteConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	Path         string        `mapstructure:"path" yaml:"path"`
	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	PongTimeout  time.Duration `mapstructure:"pong_timeout" yaml:"pong_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// AuthConfig configures admin bearer-token authentication (JWT_SECRET, JWT_EXPIRY).
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty"`
	JWTExpiry  time.Duration `mapstructure:"jwt_expiry" yaml:"jwt_expiry"`
	BcryptCost int           `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`
}

// LoggingConfig holds the log level and log file path; cortexd passes File
// to the internal/logging file sink.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// TransportConfig addresses the household-messaging bridges that let the
// pipeline be reached from outside the A2A/voice surfaces. Each adapter is
// enabled only when its token is non-empty (CORTEX_TRANSPORT_*).
type TransportConfig struct {
	DiscordToken  string `mapstructure:"discord_token" yaml:"discord_token,omitempty"`
	TelegramToken string `mapstructure:"telegram_token" yaml:"telegram_token,omitempty"`
	SlackBotToken string `mapstructure:"slack_bot_token" yaml:"slack_bot_token,omitempty"`
	SlackAppToken string `mapstructure:"slack_app_token" yaml:"slack_app_token,omitempty"`
}

// Default returns a Config populated with the env-key defaults described in
// the external interface contract.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".cortex")

	return &Config{
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8080,
			DataDir: dataDir,
		},
		LLM: LLMConfig{
			Provider:       "ollama",
			URL:            "http://127.0.0.1:11434",
			ModelFast:      "llama3.2:latest",
			ModelStandard:  "claude-3-5-haiku-latest",
			ModelThinking:  "claude-sonnet-4-20250514",
			ModelEmbedding: "nomic-embed-text",
			RequestTimeout: 2 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			URL:      "http://127.0.0.1:11434",
			Model:    "nomic-embed-text",
		},
		Context: ContextConfig{
			Default:        8000,
			Thinking:       32000,
			MaxModelSizeMB: 0,
		},
		Memory: MemoryConfig{
			DBPath:           filepath.Join(dataDir, "atlas.db"),
			VectorIndexDir:   filepath.Join(dataDir, "vectors"),
			RRFConstantK:     60,
			RapportStepUp:    0.05,
			RapportStepDown:  0.05,
			RapportDayDecay:  0.005,
			ColdQueueRetries: 5,
			JobInterval:      5 * time.Minute,
		},
		Guardrail: GuardrailConfig{
			PatternsPath:        filepath.Join(dataDir, "guardrail", "patterns.yaml"),
			SemanticThreshold:   0.82,
			DriftWindow:         20,
			KnownGoodCorpusPath: filepath.Join(dataDir, "guardrail", "known_good_corpus.json"),
			LearnerMaxFPR:       0.02,
			ReloadDebounce:      2 * time.Second,
		},
		Voice: VoiceConfig{
			DefaultVoice:    "af_sky",
			NightModeStart:  "21:00",
			NightModeEnd:    "07:00",
			IncludePhonemes: false,
		},
		Satellite: SatelliteConfig{
			ListenAddr:   "127.0.0.1:8765",
			Path:         "/ws/voice",
			PingInterval: 30 * time.Second,
			PongTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:  "",
			JWTExpiry:  15 * time.Minute,
			BcryptCost: 12,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "logs", "atlas.log"),
		},
		Transport: TransportConfig{},
	}
}

// Load reads configuration from the default location (~/.cortex/atlas.yaml)
// and merges with environment variables. If no config file exists, one is
// created with default values.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".cortex", "atlas.yaml"))
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it is created with
// default values first.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Server.DataDir = expandPath(cfg.Server.DataDir)
	cfg.Memory.DBPath = expandPath(cfg.Memory.DBPath)
	cfg.Memory.VectorIndexDir = expandPath(cfg.Memory.VectorIndexDir)
	cfg.Guardrail.PatternsPath = expandPath(cfg.Guardrail.PatternsPath)
	cfg.Guardrail.KnownGoodCorpusPath = expandPath(cfg.Guardrail.KnownGoodCorpusPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	return &cfg, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// CORTEX_LLM_PROVIDER, CORTEX_AUTH_JWT_SECRET, etc. Recognised bare keys
	// from the external interface contract (LLM_PROVIDER, JWT_SECRET, ...)
	// are bound individually below so both forms work.
	v.SetEnvPrefix("CORTEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("llm.provider", "LLM_PROVIDER")
	_ = v.BindEnv("llm.url", "LLM_URL")
	_ = v.BindEnv("llm.api_key", "LLM_API_KEY")
	_ = v.BindEnv("llm.model_fast", "MODEL_FAST")
	_ = v.BindEnv("llm.model_standard", "MODEL_STANDARD")
	_ = v.BindEnv("llm.model_thinking", "MODEL_THINKING")
	_ = v.BindEnv("llm.model_embedding", "MODEL_EMBEDDING")
	_ = v.BindEnv("embedding.provider", "EMBED_PROVIDER")
	_ = v.BindEnv("embedding.url", "EMBED_URL")
	_ = v.BindEnv("embedding.model", "EMBED_MODEL")
	_ = v.BindEnv("server.host", "CORTEX_HOST")
	_ = v.BindEnv("server.port", "CORTEX_PORT")
	_ = v.BindEnv("server.data_dir", "CORTEX_DATA_DIR")
	_ = v.BindEnv("context.default", "CONTEXT_DEFAULT")
	_ = v.BindEnv("context.thinking", "CONTEXT_THINKING")
	_ = v.BindEnv("context.max_model_size_mb", "MAX_MODEL_SIZE_MB")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("auth.jwt_expiry", "JWT_EXPIRY")
	_ = v.BindEnv("transport.discord_token", "DISCORD_TOKEN")
	_ = v.BindEnv("transport.telegram_token", "TELEGRAM_TOKEN")
	_ = v.BindEnv("transport.slack_bot_token", "SLACK_BOT_TOKEN")
	_ = v.BindEnv("transport.slack_app_token", "SLACK_APP_TOKEN")

	return v
}

// Watch attaches a filesystem watcher to the config file. onChange is invoked
// with the freshly reloaded Config whenever the file is modified on disk; it
// is debounced by a fixed two seconds to coalesce editor save bursts
// (Guardrail.ReloadDebounce is not consulted).
// Used to hot-swap the Provider Registry and Guardrail Engine without a
// process restart.
func Watch(path string, onChange func(*Config)) (*fsnotify.Watcher, error) {
	path = expandPath(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	go func() {
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(2*time.Second, func() {
					cfg, err := LoadFromPath(path)
					if err == nil {
						onChange(cfg)
					}
				})
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return watcher, nil
}

// Save writes the current configuration to the default config file location.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	return c.SaveToPath(filepath.Join(homeDir, ".cortex", "atlas.yaml"))
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// Validate checks the configuration for common errors and inconsistencies.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider cannot be empty")
	}
	if c.Context.Default <= 0 {
		return fmt.Errorf("context.default must be positive")
	}
	if c.Context.Thinking < c.Context.Default {
		return fmt.Errorf("context.thinking must be >= context.default")
	}
	if c.Guardrail.SemanticThreshold <= 0 || c.Guardrail.SemanticThreshold > 1 {
		return fmt.Errorf("guardrail.semantic_threshold must be in (0, 1]")
	}
	if c.Memory.RRFConstantK <= 0 {
		return fmt.Errorf("memory.rrf_constant_k must be positive")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// EnsureDirectories creates all necessary directories for Atlas Cortex operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Server.DataDir,
		filepath.Dir(c.Logging.File),
		filepath.Dir(c.Memory.DBPath),
		c.Memory.VectorIndexDir,
		filepath.Dir(c.Guardrail.PatternsPath),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
