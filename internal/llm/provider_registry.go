package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/atlas-cortex/cortex/internal/config"
)

// Role is a capability-tier key the rest of the system addresses providers
// by, rather than by provider name. Callers ask for "the fast model" or
// "the embedding model" and the registry picks a concrete backend.
type Role string

const (
	RoleFast     Role = "fast"     // low-latency conversational turns
	RoleStandard Role = "standard" // everyday generation
	RoleThinking Role = "thinking" // multi-step reasoning, internal monologue
	RoleEmbed    Role = "embed"    // embedding generation
)

// Capability flags a provider's optional feature support, so callers can
// filter candidates before dispatching (e.g. only providers that support
// streaming for the voice fast path).
type Capability string

const (
	CapStreaming  Capability = "streaming"
	CapEmbeddings Capability = "embeddings"
	CapThinking   Capability = "thinking"
)

// capabilityTable is a static map of provider name to the capabilities its
// service offers. It is not derived from the clients in this package: of
// them only MLXProvider implements StreamingProvider, and none exposes an
// embedding call.
var capabilityTable = map[string]map[Capability]bool{
	"ollama":     {CapStreaming: true, CapEmbeddings: true},
	"mlx":        {CapStreaming: true},
	"openai":     {CapStreaming: true, CapEmbeddings: true, CapThinking: true},
	"anthropic":  {CapStreaming: true, CapThinking: true},
	"gemini":     {CapStreaming: true, CapEmbeddings: true, CapThinking: true},
	"grok":       {CapStreaming: true, CapThinking: true},
	"groq":       {CapStreaming: true},
	"dnet":       {},
	"openrouter": {CapStreaming: true, CapThinking: true},
}

// Supports reports whether provider name is known to support cap.
func Supports(name string, cap Capability) bool {
	return capabilityTable[name][cap]
}

// roleDefaults orders which provider names are tried for each role absent
// any configuration override, best-suited first. The registry filters this
// down to whichever of these are actually configured and healthy.
var roleDefaults = map[Role][]string{
	RoleFast:     {"groq", "ollama", "mlx", "openrouter", "openai"},
	RoleStandard: {"anthropic", "openai", "gemini", "openrouter", "ollama"},
	RoleThinking: {"anthropic", "openai", "openrouter", "gemini"},
	RoleEmbed:    {"ollama", "openai", "gemini"},
}

// healthEntry caches the result of a provider's Available() check so the
// registry doesn't hit the network on every single resolution.
type healthEntry struct {
	healthy   bool
	checkedAt time.Time
}

// ProviderRegistry resolves a Role to a live Provider, trying candidates in
// preference order and skipping any that fail a (cached) health check. It is
// the role-keyed counterpart to MetricsRegistry, which tracks cost/latency
// instead of routing.
type ProviderRegistry struct {
	mu         sync.RWMutex
	cfg        *config.Config
	candidates map[string]Provider // provider name -> constructed client
	roleOrder  map[Role][]string   // role -> ordered candidate provider names

	health    *lru.Cache[string, healthEntry]
	healthTTL time.Duration
}

// NewProviderRegistry constructs every known provider once (wrapping each in
// MetricsProvider via factory.go) and assigns role preference lists, falling
// back to roleDefaults when cfg doesn't override them.
func NewProviderRegistry(cfg *config.Config) (*ProviderRegistry, error) {
	cache, err := lru.New[string, healthEntry](len(knownProviders) * 2)
	if err != nil {
		return nil, fmt.Errorf("provider health cache: %w", err)
	}

	reg := &ProviderRegistry{
		cfg:        cfg,
		candidates: make(map[string]Provider),
		roleOrder:  make(map[Role][]string),
		health:     cache,
		healthTTL:  30 * time.Second,
	}

	for _, name := range knownProviders {
		provider, err := NewProviderByName(name, providerConfigFor(name, cfg))
		if err != nil {
			continue
		}
		reg.candidates[name] = provider
	}

	for role, order := range roleDefaults {
		reg.roleOrder[role] = order
	}

	// The configured primary provider always leads the RoleFast,
	// RoleStandard and RoleThinking candidate lists, since its per-role model names
	// (ModelFast/ModelStandard/ModelThinking) are what operators actually set.
	if cfg != nil && cfg.LLM.Provider != "" {
		reg.promote(RoleStandard, cfg.LLM.Provider)
		reg.promote(RoleFast, cfg.LLM.Provider)
		reg.promote(RoleThinking, cfg.LLM.Provider)
	}
	if cfg != nil && cfg.Embedding.Provider != "" {
		reg.promote(RoleEmbed, cfg.Embedding.Provider)
	}

	return reg, nil
}

// promote moves name to the front of role's candidate order, appending it if
// absent.
func (r *ProviderRegistry) promote(role Role, name string) {
	order := r.roleOrder[role]
	filtered := make([]string, 0, len(order)+1)
	filtered = append(filtered, name)
	for _, n := range order {
		if n != name {
			filtered = append(filtered, n)
		}
	}
	r.roleOrder[role] = filtered
}

// Resolve returns the first healthy candidate configured for role, honoring
// any required capability. Health is cached for healthTTL so a failing
// provider isn't retried on every request.
func (r *ProviderRegistry) Resolve(ctx context.Context, role Role, require ...Capability) (Provider, error) {
	r.mu.RLock()
	order := append([]string(nil), r.roleOrder[role]...)
	r.mu.RUnlock()

	var lastErr error
	for _, name := range order {
		provider, ok := r.candidates[name]
		if !ok {
			continue
		}

		allCapsMet := true
		for _, cap := range require {
			if !Supports(name, cap) {
				allCapsMet = false
				break
			}
		}
		if !allCapsMet {
			continue
		}

		if !r.isHealthy(name, provider) {
			lastErr = fmt.Errorf("provider %q unavailable", name)
			continue
		}

		return provider, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no provider configured for role %q", role)
	}
	return nil, lastErr
}

// isHealthy returns provider.Available(), cached for healthTTL.
func (r *ProviderRegistry) isHealthy(name string, provider Provider) bool {
	if entry, ok := r.health.Get(name); ok && time.Since(entry.checkedAt) < r.healthTTL {
		return entry.healthy
	}

	healthy := provider.Available()
	r.health.Add(name, healthEntry{healthy: healthy, checkedAt: time.Now()})
	return healthy
}

// ModelFor returns the model name to request for role, preferring the
// configured per-role override and falling back to the provider's own
// default.
func (r *ProviderRegistry) ModelFor(role Role, providerName string) string {
	if r.cfg != nil {
		switch role {
		case RoleFast:
			if r.cfg.LLM.ModelFast != "" {
				return r.cfg.LLM.ModelFast
			}
		case RoleStandard:
			if r.cfg.LLM.ModelStandard != "" {
				return r.cfg.LLM.ModelStandard
			}
		case RoleThinking:
			if r.cfg.LLM.ModelThinking != "" {
				return r.cfg.LLM.ModelThinking
			}
		case RoleEmbed:
			if r.cfg.LLM.ModelEmbedding != "" {
				return r.cfg.LLM.ModelEmbedding
			}
		}
	}
	return DefaultConfig(providerName).Model
}

// Providers returns the names of every constructed candidate, for
// diagnostics and the cortexctl status command.
func (r *ProviderRegistry) Providers() []string {
	names := make([]string, 0, len(r.candidates))
	for name := range r.candidates {
		names = append(names, name)
	}
	return names
}

// RefreshHealth forces a re-check of every candidate, bypassing the cache.
// Intended to be called from the periodic provider health-check job.
func (r *ProviderRegistry) RefreshHealth() {
	for name, provider := range r.candidates {
		healthy := provider.Available()
		r.health.Add(name, healthEntry{healthy: healthy, checkedAt: time.Now()})
	}
}
