// Package config provides configuration management for Atlas Cortex.
//
// # Overview
//
// The config package uses Viper to load configuration from a YAML file and
// environment variables. It provides a type-safe configuration structure with
// validation, default values, and automatic file creation.
//
// # Configuration File
//
// The configuration is stored at ~/.cortex/atlas.yaml and is automatically
// created with sensible defaults on first use. The file structure mirrors
// the Go structs defined in this package.
//
// # Environment Variables
//
// Recognised bare keys take precedence: LLM_PROVIDER, LLM_URL, LLM_API_KEY,
// MODEL_FAST, MODEL_STANDARD, MODEL_THINKING, MODEL_EMBEDDING, EMBED_PROVIDER,
// EMBED_URL, EMBED_MODEL, CORTEX_HOST, CORTEX_PORT, CORTEX_DATA_DIR,
// CONTEXT_DEFAULT, CONTEXT_THINKING, MAX_MODEL_SIZE_MB, JWT_SECRET, JWT_EXPIRY.
// All other fields can additionally be overridden with the CORTEX_ prefix,
// nested fields separated by underscores, e.g. CORTEX_MEMORY_RRF_CONSTANT_K.
//
// # Usage Example
//
//	package main
//
//	import (
//	    "log"
//	    "github.com/atlas-cortex/cortex/internal/config"
//	)
//
//	func main() {
//	    cfg, err := config.Load()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := cfg.EnsureDirectories(); err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := cfg.Validate(); err != nil {
//	        log.Fatal(err)
//	    }
//	    log.Printf("Using %s with fast model %s", cfg.LLM.Provider, cfg.LLM.ModelFast)
//	}
//
// # Security Best Practices
//
// API keys should be stored in environment variables rather than in the
// config file to prevent accidental exposure:
//
//	export LLM_API_KEY=sk-...
//	export JWT_SECRET=$(openssl rand -hex 32)
//
// # Configuration Sections
//
//   - LLM: primary model provider and per-role model selection (fast/standard/thinking)
//   - Embedding: embedding provider, which may differ from the chat provider
//   - Context: token-budget overrides for the Context Assembler
//   - Memory: HOT/COLD memory subsystem tuning (RRF, rapport decay, job cadence)
//   - Guardrail: pattern/semantic thresholds and the adaptive-learner admission gate
//   - Voice: TTS Bridge defaults
//   - Satellite: bidirectional transport bind address and timeouts
//   - Auth: admin bearer-token authentication
//   - Logging: log level and output file configuration
//
// # Hot Reload
//
// Watch attaches an fsnotify watcher to the config file so the Provider
// Registry and Guardrail Engine can pick up edited provider lists or
// guardrail thresholds without a restart.
//
// # Path Expansion
//
// The package automatically expands ~ to the user's home directory in
// all path configurations, making config files portable across systems.
//
// # Thread Safety
//
// Config instances are not thread-safe. Callers that mutate a shared Config
// concurrently with Watch callbacks should guard it with a sync.RWMutex.
package config
