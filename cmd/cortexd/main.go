// Command cortexd is the Atlas Cortex daemon: it loads configuration, opens
// the local data store, wires every pipeline component (Provider Registry,
// Memory Store, Profile & Identity Service, Spatial Resolver, Instant
// Resolver, Action Registry, Guardrail Engine, Generation Orchestrator, TTS
// Bridge), and serves the A2A front end plus the auth API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/atlas-cortex/cortex/internal/a2a"
	"github.com/atlas-cortex/cortex/internal/action"
	"github.com/atlas-cortex/cortex/internal/auth"
	"github.com/atlas-cortex/cortex/internal/cognitive"
	"github.com/atlas-cortex/cortex/internal/config"
	"github.com/atlas-cortex/cortex/internal/data"
	"github.com/atlas-cortex/cortex/internal/guardrail"
	"github.com/atlas-cortex/cortex/internal/identity"
	"github.com/atlas-cortex/cortex/internal/llm"
	"github.com/atlas-cortex/cortex/internal/logging"
	"github.com/atlas-cortex/cortex/internal/memory"
	"github.com/atlas-cortex/cortex/internal/orchestrator"
	"github.com/atlas-cortex/cortex/internal/resolver"
	"github.com/atlas-cortex/cortex/internal/satellite"
	"github.com/atlas-cortex/cortex/internal/spatial"
	"github.com/atlas-cortex/cortex/internal/transport"
	"github.com/atlas-cortex/cortex/internal/voice"
)

func main() {
	configPath := flag.String("config", "", "path to atlas.yaml (defaults to ~/.cortex/atlas.yaml)")
	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		os.Stderr.WriteString("cortexd: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		os.Stderr.WriteString("cortexd: " + err.Error() + "\n")
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	if *verbose {
		logCfg = logging.VerboseConfig()
	}
	logCfg.FilePath = cfg.Logging.File
	logCfg.Component = "cortexd"
	log := logging.New(logCfg)
	logging.SetGlobal(log)

	db, err := data.NewDB(cfg.Server.DataDir)
	if err != nil {
		log.Fatal("open data store: %v", err)
	}
	defer db.Close()

	registry, err := llm.NewProviderRegistry(cfg)
	if err != nil {
		log.Fatal("build provider registry: %v", err)
	}

	driver := buildDriver(cfg, db, registry, log)

	ttsRouter := buildVoiceRouter(cfg)

	authStore := auth.NewStore(db.DB())
	authService := auth.NewService(authStore, auth.DefaultConfig())
	authHandlers := auth.NewHandlers(authService)

	server := a2a.NewServer(&a2a.ServerConfig{
		AgentName:        "Atlas Cortex",
		AgentDescription: "Household voice-and-text assistant",
		AgentVersion:     "1.0.0",
		Port:             cfg.Server.Port,
		DB:               db.DB(),
		Driver:           driverAdapter{driver},
	})

	// auth.Handlers doesn't implement a2a.AuthHandlersInterface's persona
	// sub-routes, so its routes are mounted on an outer mux that falls
	// through to the A2A server for everything else. Go 1.22+ ServeMux
	// precedence means the specific /api/auth/* patterns win over "/".
	outer := http.NewServeMux()
	authHandlers.RegisterRoutes(outer)
	outer.HandleFunc("POST /api/v1/voice/speak", speakHandler(ttsRouter))
	outer.Handle("/", server)

	ctx, cancelTransport := context.WithCancel(context.Background())
	defer cancelTransport()
	router := transport.NewRouter(transportDriverAdapter{driver}, log,
		transport.NewDiscordAdapter(cfg.Transport.DiscordToken),
		transport.NewTelegramAdapter(cfg.Transport.TelegramToken),
		transport.NewSlackAdapter(cfg.Transport.SlackBotToken, cfg.Transport.SlackAppToken),
	)
	router.Start(ctx)

	satelliteFiller := orchestrator.NewStoreFillerProvider(db)
	satelliteServer := satellite.NewServer(satellite.ServerConfig{
		Path:         cfg.Satellite.Path,
		PingInterval: cfg.Satellite.PingInterval,
		PongTimeout:  cfg.Satellite.PongTimeout,
		WriteTimeout: cfg.Satellite.WriteTimeout,
	}, satelliteDriverAdapter{driver}, sttAdapter{voice.GetSTTRouter()}, ttsAdapter{ttsRouter}, satelliteFiller, log)
	satelliteMux := http.NewServeMux()
	satelliteServer.RegisterRoutes(satelliteMux)
	satelliteHTTP := &http.Server{Addr: cfg.Satellite.ListenAddr, Handler: satelliteMux}
	go func() {
		log.Info("satellite gateway listening on %s%s", cfg.Satellite.ListenAddr, cfg.Satellite.Path)
		if err := satelliteHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("satellite gateway failed: %v", err)
		}
	}()
	defer satelliteHTTP.Close()

	addr := cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: outer}

	go func() {
		log.Info("cortexd listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed: %v", err)
		}
	}()

	waitForShutdown(log, httpServer)
}

// buildDriver wires the Pipeline Driver (component I) from every
// per-request collaborator: Layer 0 context assembly, the guardrail cage,
// the Instant Resolver, the Action Registry, and the Generation
// Orchestrator, in the fixed order Driver.Process runs them.
func buildDriver(cfg *config.Config, db *data.Store, registry *llm.ProviderRegistry, log *logging.Logger) *orchestrator.Driver {
	idSvc := identity.New(db)
	spatialResolver := spatial.New(db)

	embedder := memory.NewOllamaEmbedder(cfg.Embedding.URL, cfg.Embedding.Model, 768)
	vectorIndex := memory.NewVectorIndex(db.DB())
	hotStore := memory.NewHotStore(db, vectorIndex, embedder, cfg.Memory.RRFConstantK)

	modeTracker := cognitive.NewModeTracker()
	pipelineCfg := cognitive.DefaultConfig()
	pipelineCfg.FastModel = registry.ModelFor(llm.RoleFast, cfg.LLM.Provider)
	pipelineCfg.SmartModel = registry.ModelFor(llm.RoleThinking, cfg.LLM.Provider)
	filler := orchestrator.NewStoreFillerProvider(db)
	generator := orchestrator.NewCognitiveGenerator(registry, modeTracker, pipelineCfg, filler)

	assembler := orchestrator.NewSystemAssembler(idSvc, spatialResolver, hotStore, db,
		"You are Atlas, a calm and helpful household voice assistant.", modeTracker, generator)

	patterns := guardrail.NewPatternTable()
	semantic := guardrail.NewSemanticDetector(embedder, cfg.Guardrail.SemanticThreshold)
	learner := guardrail.NewLearner(patterns, semantic, nil, cfg.Guardrail.LearnerMaxFPR)
	guardrails := guardrail.NewEngine(patterns, semantic, learner)

	storeAdapter := orchestrator.NewStoreAdapter(db)
	instantResolver := resolver.New(storeAdapter)

	actions := action.New(idSvc)

	decider := memory.NewDecider(&registryCompleter{registry: registry, role: llm.RoleFast})
	consumer := memory.NewConsumer(db, vectorIndex, embedder, decider)

	var notifier *memory.Notifier
	if n, err := memory.NewNotifier("127.0.0.1:6379", "", 0); err == nil {
		notifier = n
	} else {
		log.Warn("redis notifier unavailable, memory jobs fall back to cron-only draining: %v", err)
	}

	jobs := memory.NewMemoryJobs(db.DB(), db, db, memory.JobConfig{
		Interval:           cfg.Memory.JobInterval,
		RapportDayDecay:    cfg.Memory.RapportDayDecay,
		ColdQueueRetries:   cfg.Memory.ColdQueueRetries,
		RebuildVectorIndex: false,
	}, log)
	jobs.SetVectorIndex(vectorIndex)
	jobs.SetConsumer(consumer)
	if notifier != nil {
		jobs.SetNotifier(notifier)
	}
	jobs.Start()

	return orchestrator.New(assembler, guardrails, instantResolver, actions, generator, storeAdapter)
}

// registryCompleter adapts the Provider Registry to memory.LLMProvider for
// the COLD-path Decider's ambiguous-case classification calls.
type registryCompleter struct {
	registry *llm.ProviderRegistry
	role     llm.Role
}

func (c *registryCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	provider, err := c.registry.Resolve(ctx, c.role)
	if err != nil {
		return "", err
	}
	resp, err := provider.Chat(ctx, &llm.ChatRequest{
		Model:    c.registry.ModelFor(c.role, provider.Name()),
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// driverAdapter translates orchestrator.PipelineResult to a2a.PipelineResult
// so *orchestrator.Driver satisfies a2a.Driver without orchestrator
// importing a2a (which would create an import cycle).
type driverAdapter struct {
	driver *orchestrator.Driver
}

func (d driverAdapter) Process(ctx context.Context, userID, personaID, input string) (*a2a.PipelineResult, error) {
	res, err := d.driver.Process(ctx, userID, personaID, input)
	if err != nil {
		return nil, err
	}
	return &a2a.PipelineResult{
		Layer:       res.Layer,
		Text:        res.Text,
		Confidence:  res.Confidence,
		TokensUsed:  res.TokensUsed,
		ModelUsed:   res.ModelUsed,
		Duration:    res.Duration,
		Blocked:     res.Blocked,
		BlockReason: res.BlockReason,
	}, nil
}

// transportDriverAdapter adapts *orchestrator.Driver to transport.Driver, the
// same translation driverAdapter performs for a2a.Driver — one concrete
// driver, two narrow interfaces so neither orchestrator nor transport needs
// to import the other's types.
type transportDriverAdapter struct {
	driver *orchestrator.Driver
}

func (d transportDriverAdapter) Process(ctx context.Context, userID, personaID, input string) (transport.Result, error) {
	res, err := d.driver.Process(ctx, userID, personaID, input)
	if err != nil {
		return transport.Result{}, err
	}
	return transport.Result{Text: res.Text}, nil
}

// satelliteDriverAdapter is transportDriverAdapter's twin for the Satellite
// Gateway — same one-driver-many-narrow-interfaces shape.
type satelliteDriverAdapter struct {
	driver *orchestrator.Driver
}

func (d satelliteDriverAdapter) Process(ctx context.Context, userID, personaID, input string) (satellite.Result, error) {
	res, err := d.driver.Process(ctx, userID, personaID, input)
	if err != nil {
		return satellite.Result{}, err
	}
	return satellite.Result{Text: res.Text}, nil
}

// sttAdapter bridges the STT Router (voice.STTRouter) to satellite.Transcriber.
type sttAdapter struct {
	router *voice.STTRouter
}

func (s sttAdapter) Transcribe(ctx context.Context, audio []byte) (string, error) {
	res, err := s.router.Transcribe(ctx, &voice.STTRequest{AudioData: audio, AudioFormat: "wav"})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// ttsAdapter bridges the TTS Bridge (voice.Router) to satellite.Synthesizer,
// always over the Fast Lane since satellite playback is latency-sensitive.
type ttsAdapter struct {
	router *voice.Router
}

func (t ttsAdapter) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := t.router.Speak(ctx, &voice.SpeakRequest{Text: text, Lane: "fast"})
	if err != nil {
		return nil, err
	}
	return resp.Audio, nil
}

// buildVoiceRouter wires the TTS Bridge (component J) over two local
// OpenAI-speech-compatible HTTP servers: a Fast Lane (Kokoro-style, low
// latency) and a Smart Lane (XTTS-style, higher quality/cloning). Either
// endpoint being unreachable degrades gracefully — Router.Speak falls back
// to Fast Lane, and Fast Lane failures surface as a synthesis error rather
// than blocking the text response.
func buildVoiceRouter(cfg *config.Config) *voice.Router {
	fast := voice.NewHTTPProvider("kokoro", "http://127.0.0.1:8880", []voice.Voice{
		{ID: cfg.Voice.DefaultVoice, Name: cfg.Voice.DefaultVoice, Language: "en", Gender: voice.GenderNeutral},
	})
	smart := voice.NewHTTPProvider("xtts", "http://127.0.0.1:8020", nil)

	routerCfg := voice.DefaultRouterConfig()
	routerCfg.FastLaneDefaultVoice = cfg.Voice.DefaultVoice
	return voice.NewRouter(fast, smart, routerCfg)
}

// speakHandler exposes the TTS Bridge directly for clients that want audio
// back instead of (or alongside) the A2A text response.
func speakHandler(router *voice.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req voice.SpeakRequest
		if err := readJSON(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Lane == "" {
			req.Lane = "fast"
		}

		resp, err := router.Speak(r.Context(), &req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "audio/"+string(resp.Format))
		w.Header().Set("X-Voice-Provider", resp.Provider)
		w.Write(resp.Audio)
	}
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func waitForShutdown(log *logging.Logger, srv *http.Server) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed: %v", err)
	}
}
