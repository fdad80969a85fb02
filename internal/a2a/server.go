// Package a2a exposes Atlas Cortex's layered request pipeline as an
// A2A-compliant server, implementing the A2A Protocol v0.3.0 via the
// official a2a-go SDK so that satellites, the admin CLI, and any other
// A2A client can all reach the same Chat endpoint.
//
// Supported Features:
//   - Agent Card discovery (/.well-known/agent-card.json)
//   - JSON-RPC 2.0 transport (HTTP POST)
//   - Streaming via SSE
//   - Full task lifecycle management
//   - Text and Data parts
//   - Artifacts describing which pipeline layer produced a response
package a2a

import (
	"context"
	"database/sql"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/atlas-cortex/cortex/internal/logging"
	"github.com/atlas-cortex/cortex/internal/metrics"
)

// voiceOptimizationGuidelines adds voice-specific formatting to rich persona prompts.
// These guidelines ensure natural spoken responses while preserving full personality.
const voiceOptimizationGuidelines = `

## Voice Output Guidelines (IMPORTANT)
This is a voice conversation. Your responses will be spoken aloud via text-to-speech.

Response format for voice:
- Keep responses to 1-3 sentences unless explaining something complex
- Use spoken formats: "three fifteen PM" not "15:15", "about two thousand" not "2,048"
- Start with brief acknowledgment: "Got it" / "On it" / "Sure" / "Let me think..."
- Don't read out file paths, URLs, or code syntax unless specifically asked
- Don't use markdown formatting (no asterisks, backticks, or headers)
- Don't use emojis unless they're part of your established personality
- End naturally without forcing a question every time

What NOT to do in voice responses:
- Don't narrate your thinking process extensively (keep inner thoughts internal)
- Don't repeat the user's question back to them
- Don't use text-only formatting like bullet points or code blocks
- Don't spell out technical terms character by character
`

func init() {
	// Register types with gob for A2A task state serialization.
	// These are needed because artifact data contains nested map/slice types.
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
	gob.Register([]map[string]interface{}{})
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register([]map[string]any{})
}

// ═══════════════════════════════════════════════════════════════════════════════
// PIPELINE EXECUTOR (implements a2asrv.AgentExecutor)
// ═══════════════════════════════════════════════════════════════════════════════

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// LLMChatProvider is the fast-path chat provider used for simple conversational
// turns that bypass the full pipeline. Uses proper multi-turn history rather
// than injecting history as text into a single user message.
type LLMChatProvider interface {
	Chat(ctx context.Context, systemPrompt string, messages []ChatMessage) (string, error)
}

// PipelineResult carries the outcome of a turn through the layered pipeline:
// Layer 1 Instant Resolver, Layer 2 Action Registry, or Layer 3 Generation
// Orchestrator. Layer is one of "instant", "action", "llm", or "blocked" and
// is mutually exclusive per request.
type PipelineResult struct {
	Layer       string
	Text        string
	Confidence  float64
	TokensUsed  int
	ModelUsed   string
	Duration    time.Duration
	Blocked     bool
	BlockReason string
}

// Driver routes a turn through the guardrail cage, Instant Resolver, Action
// Registry, and Generation Orchestrator, in that order, and returns the
// terminal layer's result. Implemented by the pipeline coordinator.
type Driver interface {
	Process(ctx context.Context, userID, personaID, input string) (*PipelineResult, error)
}

// MemoryProvider retrieves HOT-path conversational context for prompt
// assembly: the RRF-fused result of dense and BM25 retrieval over a user's
// memory cells.
type MemoryProvider interface {
	RetrieveContext(ctx context.Context, userID, query string) (string, error)
}

// PipelineExecutor adapts the pipeline Driver to the A2A AgentExecutor interface.
type PipelineExecutor struct {
	driver      Driver
	log         *logging.Logger
	lessonStore *LessonStore
	memory      MemoryProvider
	profiles    *ProfileRegistry
	chatLLM     LLMChatProvider
}

// NewPipelineExecutor creates a new PipelineExecutor.
func NewPipelineExecutor(driver Driver, lessonStore *LessonStore, mem MemoryProvider, profiles *ProfileRegistry) *PipelineExecutor {
	return &PipelineExecutor{
		driver:      driver,
		log:         logging.Global(),
		lessonStore: lessonStore,
		memory:      mem,
		profiles:    profiles,
	}
}

// SetChatLLM sets the LLM provider used for the simple-conversation fast path.
func (e *PipelineExecutor) SetChatLLM(llm LLMChatProvider) {
	e.chatLLM = llm
}

// isSimpleConversation reports whether input looks like a short conversational
// turn that the Instant Resolver's fast path should take directly to a chat
// model, bypassing the guardrail cage and full pipeline.
//
// Default to the fast path; only route explicit complex requests through the
// full pipeline. Fast-path turns still get memory context via
// buildConversationMessages.
func isSimpleConversation(input string) bool {
	input = strings.ToLower(strings.TrimSpace(input))

	pipelineRequired := []string{
		// Explicit memory operations
		"remember this", "don't forget", "recall when", "recall what",
		"what do you know about me", "have we discussed", "did we talk about",
		"what's my name", "whats my name", "who am i",
		// Device and action requests
		"turn on", "turn off", "set a timer", "set an alarm", "add to my list",
		"play ", "pause", "stop the music", "dim the lights", "lock the",
		// Analysis requests
		"analyze this", "summarize this", "compare these", "calculate the",
	}

	for _, indicator := range pipelineRequired {
		if strings.Contains(input, indicator) {
			return false
		}
	}

	// Short conversational messages use the fast path: "What's the weather?",
	// "Tell me a joke", "How's it going?", etc.
	if len(input) < 150 {
		return true
	}

	return false
}

// Execute implements a2asrv.AgentExecutor. It processes a message through
// the pipeline and writes events to the queue.
func (e *PipelineExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	startTime := time.Now()

	workingEvent := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)
	if err := queue.Write(ctx, workingEvent); err != nil {
		return fmt.Errorf("failed to write working state: %w", err)
	}

	input := extractTextFromMessage(reqCtx.Message)

	if e.chatLLM != nil && isSimpleConversation(input) {
		return e.executeSimpleChat(ctx, reqCtx, queue, input)
	}

	if e.driver == nil {
		errorMsg := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "no pipeline driver configured"})
		failEvent := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateFailed, errorMsg)
		failEvent.Final = true
		return queue.Write(ctx, failEvent)
	}

	enriched := e.injectMemoryContextAsText(ctx, reqCtx, input)

	userID, personaID := requestIdentity(reqCtx)
	result, err := e.driver.Process(ctx, userID, personaID, enriched)
	if err != nil {
		e.log.Error("[A2A] pipeline execution failed: %v", err)
		errorMsg := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: fmt.Sprintf("Error: %v", err)})
		failEvent := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateFailed, errorMsg)
		failEvent.Final = true
		return queue.Write(ctx, failEvent)
	}

	metrics.PipelineRequests.WithLabelValues(result.Layer).Inc()
	metrics.PipelineDuration.WithLabelValues(result.Layer).Observe(time.Since(startTime).Seconds())
	if result.Blocked {
		metrics.GuardrailBlocks.WithLabelValues(result.BlockReason).Inc()
	}

	if err := e.writeArtifacts(ctx, reqCtx, queue, result); err != nil {
		e.log.Warn("[A2A] failed to write pipeline artifacts: %v", err)
	}

	parts := []a2a.Part{a2a.TextPart{Text: result.Text}}
	if metadata := buildMetadata(result); len(metadata) > 0 {
		parts = append(parts, a2a.DataPart{Data: metadata})
	}
	responseMsg := a2a.NewMessage(a2a.MessageRoleAgent, parts...)

	if !result.Blocked {
		e.saveConversation(ctx, userID, personaID, input, result.Text)
	}

	completeEvent := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, responseMsg)
	completeEvent.Final = true
	if err := queue.Write(ctx, completeEvent); err != nil {
		return fmt.Errorf("failed to write state completed: %w", err)
	}

	e.log.Info("[A2A] pipeline turn completed taskID=%s layer=%s totalTime=%v", reqCtx.TaskID, result.Layer, time.Since(startTime))
	return nil
}

// Cancel implements a2asrv.AgentExecutor.
func (e *PipelineExecutor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	e.log.Info("[A2A] Cancel: taskID=%s", reqCtx.TaskID)

	cancelEvent := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
	cancelEvent.Final = true
	return queue.Write(ctx, cancelEvent)
}

// executeSimpleChat handles simple conversational messages directly against
// the chat LLM, using proper multi-turn conversation history rather than
// text injection.
func (e *PipelineExecutor) executeSimpleChat(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue, originalInput string) error {
	startTime := time.Now()

	userID, personaID := requestIdentity(reqCtx)

	systemPrompt := voiceOptimizationGuidelines
	if e.profiles != nil {
		if p, ok := e.profiles.Get(personaID); ok {
			systemPrompt = p.SystemPrompt() + voiceOptimizationGuidelines
		}
	}

	messages := e.buildConversationMessages(ctx, reqCtx, originalInput)

	response, err := e.chatLLM.Chat(ctx, systemPrompt, messages)
	if err != nil {
		e.log.Error("[A2A] simple chat failed: %v", err)
		errorMsg := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: fmt.Sprintf("Error: %v", err)})
		failEvent := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateFailed, errorMsg)
		failEvent.Final = true
		return queue.Write(ctx, failEvent)
	}

	e.saveConversation(ctx, userID, personaID, originalInput, response)

	metrics.PipelineRequests.WithLabelValues("instant").Inc()
	metrics.PipelineDuration.WithLabelValues("instant").Observe(time.Since(startTime).Seconds())

	responseMsg := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: response})
	completeEvent := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, responseMsg)
	completeEvent.Final = true
	if err := queue.Write(ctx, completeEvent); err != nil {
		return fmt.Errorf("failed to write state completed: %w", err)
	}

	e.log.Info("[A2A] simple chat completed taskID=%s persona=%s messages=%d totalTime=%v", reqCtx.TaskID, personaID, len(messages), time.Since(startTime))
	return nil
}

// saveConversation persists the user/assistant turn as a lesson for future
// conversation-history retrieval, standing in for interaction-log enqueue.
func (e *PipelineExecutor) saveConversation(ctx context.Context, userID, personaID, userMessage, assistantResponse string) {
	if e.lessonStore == nil {
		return
	}
	if userID == "" || personaID == "" {
		e.log.Debug("[A2A] cannot save conversation: missing userID or personaID")
		return
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lessons, err := e.lessonStore.List(saveCtx, userID, personaID, 1)
	var lessonID string

	if err != nil {
		e.log.Warn("[A2A] failed to list lessons: %v", err)
		return
	}

	if len(lessons) > 0 && lessons[0].Status == "active" {
		lessonID = lessons[0].ID
	} else {
		title := generateLessonTitle(userMessage)
		lesson, err := e.lessonStore.Create(saveCtx, userID, personaID, title)
		if err != nil {
			e.log.Warn("[A2A] failed to create lesson: %v", err)
			return
		}
		lessonID = lesson.ID
		e.log.Debug("[A2A] created new lesson %s for user %s", lessonID, userID)
	}

	if _, err := e.lessonStore.AddMessage(saveCtx, lessonID, "user", userMessage); err != nil {
		e.log.Warn("[A2A] failed to save user message: %v", err)
		return
	}

	if _, err := e.lessonStore.AddMessage(saveCtx, lessonID, "assistant", assistantResponse); err != nil {
		e.log.Warn("[A2A] failed to save assistant message: %v", err)
		return
	}

	e.log.Debug("[A2A] saved conversation to lesson %s", lessonID)
}

// generateLessonTitle creates a title from the first user message.
func generateLessonTitle(userMessage string) string {
	title := userMessage
	if len(title) > 50 {
		title = title[:47] + "..."
	}
	title = strings.ReplaceAll(title, "\n", " ")
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Conversation " + time.Now().Format("Jan 2, 3:04 PM")
	}
	return title
}

// injectMemoryContextAsText prepends HOT-path memory context ahead of the
// current question for pipeline requests that need it.
func (e *PipelineExecutor) injectMemoryContextAsText(ctx context.Context, reqCtx *a2asrv.RequestContext, input string) string {
	userID, _ := requestIdentity(reqCtx)
	if e.memory == nil || userID == "" {
		return input
	}

	memCtx, err := e.memory.RetrieveContext(ctx, userID, input)
	if err != nil {
		e.log.Warn("[A2A] failed to retrieve memory context: %v", err)
		return input
	}
	if memCtx == "" {
		return input
	}

	return memCtx + "\n---\n\n# Current Question\n\n" + input
}

// buildConversationMessages builds proper message turns from recent lesson
// history rather than injecting history as text.
func (e *PipelineExecutor) buildConversationMessages(ctx context.Context, reqCtx *a2asrv.RequestContext, currentInput string) []ChatMessage {
	messages := []ChatMessage{}

	if e.lessonStore == nil {
		return append(messages, ChatMessage{Role: "user", Content: currentInput})
	}

	userID, personaID := requestIdentity(reqCtx)
	if userID == "" || personaID == "" {
		e.log.Debug("[A2A] no user/persona metadata for context injection")
		return append(messages, ChatMessage{Role: "user", Content: currentInput})
	}

	recentMessages, err := e.lessonStore.GetRecentMessages(ctx, userID, personaID, 10)
	if err != nil {
		e.log.Warn("[A2A] failed to get recent messages: %v", err)
	} else if len(recentMessages) > 0 {
		for _, msg := range recentMessages {
			messages = append(messages, ChatMessage{Role: msg.Role, Content: msg.Content})
		}
		e.log.Debug("[A2A] injected %d message turns for user=%s", len(recentMessages), userID)
	}

	messages = append(messages, ChatMessage{Role: "user", Content: currentInput})
	return messages
}

// writeArtifacts writes one artifact describing which pipeline layer
// produced the response and how.
func (e *PipelineExecutor) writeArtifacts(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue, result *PipelineResult) error {
	data := map[string]any{
		"layer":      result.Layer,
		"confidence": result.Confidence,
		"tokensUsed": result.TokensUsed,
		"modelUsed":  result.ModelUsed,
		"durationMs": result.Duration.Milliseconds(),
		"blocked":    result.Blocked,
	}
	if result.Blocked {
		data["blockReason"] = result.BlockReason
	}

	event := a2a.NewArtifactEvent(reqCtx, a2a.DataPart{Data: data})
	event.Artifact.Name = "pipeline-result"
	event.Artifact.Description = fmt.Sprintf("Response produced by the %s layer", result.Layer)
	return queue.Write(ctx, event)
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func requestIdentity(reqCtx *a2asrv.RequestContext) (userID, personaID string) {
	if reqCtx.Message == nil || reqCtx.Message.Metadata == nil {
		return "", ""
	}
	if uid, ok := reqCtx.Message.Metadata["userId"].(string); ok {
		userID = uid
	}
	personaID = "default"
	if pid, ok := reqCtx.Message.Metadata["personaId"].(string); ok && pid != "" {
		personaID = pid
	}
	return userID, personaID
}

func extractTextFromMessage(msg *a2a.Message) string {
	if msg == nil {
		return ""
	}
	var text string
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case a2a.TextPart:
			text += p.Text + " "
		case *a2a.TextPart:
			text += p.Text + " "
		}
	}
	return strings.TrimSpace(text)
}

func buildMetadata(result *PipelineResult) map[string]any {
	metadata := make(map[string]any)
	metadata["layer"] = result.Layer
	metadata["processingTimeMs"] = result.Duration.Milliseconds()
	if result.ModelUsed != "" {
		metadata["modelUsed"] = result.ModelUsed
	}
	if result.TokensUsed > 0 {
		metadata["tokensUsed"] = result.TokensUsed
	}
	return metadata
}

// ═══════════════════════════════════════════════════════════════════════════════
// SERVER
// ═══════════════════════════════════════════════════════════════════════════════

// Server wraps the A2A server infrastructure.
type Server struct {
	executor    *PipelineExecutor
	handler     a2asrv.RequestHandler
	mux         *http.ServeMux
	server      *http.Server
	log         *logging.Logger
	card        *a2a.AgentCard
	llmProxy    *LLMProxy
	profiles    *ProfileRegistry
	lessonStore *LessonStore
}

// AuthHandlersInterface defines the interface for auth handlers.
type AuthHandlersInterface interface {
	RegisterRoutes(mux *http.ServeMux)
	GetUserPersonas(w http.ResponseWriter, r *http.Request)
	AssignPersona(w http.ResponseWriter, r *http.Request)
	UnassignPersona(w http.ResponseWriter, r *http.Request)
	SetDefaultPersona(w http.ResponseWriter, r *http.Request)
}

// ServerConfig configures the A2A server.
type ServerConfig struct {
	AgentName        string
	AgentDescription string
	AgentVersion     string
	Port             int
	AuthHandlers     AuthHandlersInterface
	DB               interface{}
	Driver           Driver          // Pipeline Driver; required for anything beyond the fast path
	Memory           MemoryProvider  // HOT-path context retrieval, optional
	Profiles         *ProfileRegistry
	ChatLLM          LLMChatProvider // Fast-path chat provider, optional
}

// NewServer creates a new A2A server using the official SDK.
func NewServer(cfg *ServerConfig) *Server {
	if cfg == nil {
		cfg = &ServerConfig{
			AgentName:        "Atlas Cortex",
			AgentDescription: "Voice-and-text assistant front end",
			AgentVersion:     "1.0.0",
			Port:             8080,
		}
	}

	var lessonStore *LessonStore
	if db, ok := cfg.DB.(*sql.DB); ok && db != nil {
		lessonStore = NewLessonStore(db)
	}

	executor := NewPipelineExecutor(cfg.Driver, lessonStore, cfg.Memory, cfg.Profiles)
	if cfg.ChatLLM != nil {
		executor.SetChatLLM(cfg.ChatLLM)
	}

	agentCard := &a2a.AgentCard{
		Name:               cfg.AgentName,
		Description:        cfg.AgentDescription,
		Version:            cfg.AgentVersion,
		ProtocolVersion:    "0.3",
		URL:                fmt.Sprintf("http://localhost:%d/", cfg.Port),
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		Capabilities: a2a.AgentCapabilities{
			Streaming:              true,
			PushNotifications:      true,
			StateTransitionHistory: true,
		},
		DefaultInputModes:  []string{"text", "application/json"},
		DefaultOutputModes: []string{"text", "application/json"},
		Skills: []a2a.AgentSkill{
			{
				ID:          "conversation",
				Name:        "Conversation",
				Description: "Natural spoken and written conversation with memory of prior turns and household profiles.",
				Tags:        []string{"chat", "voice", "memory"},
				Examples:    []string{"What's the weather like?", "Tell me a joke", "Remember that I prefer tea over coffee"},
				InputModes:  []string{"text"},
				OutputModes: []string{"text", "application/json"},
			},
			{
				ID:          "actions",
				Name:        "Device and Routine Actions",
				Description: "Recognize closed-set commands for devices, timers, and routines without invoking a model.",
				Tags:        []string{"actions", "devices", "routines"},
				Examples:    []string{"Turn off the kitchen lights", "Set a timer for ten minutes"},
				InputModes:  []string{"text"},
				OutputModes: []string{"application/json"},
			},
			{
				ID:          "memory",
				Name:        "Memory Recall",
				Description: "Retrieve relevant facts and prior conversation context scoped to a household member.",
				Tags:        []string{"memory", "retrieval", "context"},
				InputModes:  []string{"text"},
				OutputModes: []string{"text"},
			},
			{
				ID:          "safety",
				Name:        "Guardrail Safety",
				Description: "Evaluate requests against age-appropriate and safety guardrails before generation.",
				Tags:        []string{"safety", "guardrail"},
				InputModes:  []string{"text"},
				OutputModes: []string{"application/json"},
			},
		},
	}

	handler := a2asrv.NewHandler(executor)

	mux := http.NewServeMux()
	mux.Handle("/", a2asrv.NewJSONRPCHandler(handler))
	mux.Handle(a2asrv.WellKnownAgentCardPath, a2asrv.NewStaticAgentCardHandler(agentCard))
	mux.Handle("/.well-known/agent.json", a2asrv.NewStaticAgentCardHandler(agentCard))

	llmProxy := NewLLMProxy()
	llmProxy.InitializeProviders()
	llmProxy.SetLessonStore(lessonStore)
	llmProxy.RegisterRoutes(mux)
	llmProxy.GetKeyManager().RegisterConfigRoutes(mux)

	if cfg.AuthHandlers != nil {
		cfg.AuthHandlers.RegisterRoutes(mux)
		mux.HandleFunc("GET /api/v1/users/{userId}/personas", cfg.AuthHandlers.GetUserPersonas)
		mux.HandleFunc("POST /api/v1/users/{userId}/personas/{personaId}", cfg.AuthHandlers.AssignPersona)
		mux.HandleFunc("DELETE /api/v1/users/{userId}/personas/{personaId}", cfg.AuthHandlers.UnassignPersona)
		mux.HandleFunc("PUT /api/v1/users/{userId}/personas/{personaId}/default", cfg.AuthHandlers.SetDefaultPersona)
	}

	metrics.RegisterRoutes(mux)

	srv := &Server{
		executor:    executor,
		handler:     handler,
		mux:         mux,
		log:         logging.Global(),
		card:        agentCard,
		llmProxy:    llmProxy,
		profiles:    cfg.Profiles,
		lessonStore: lessonStore,
	}

	if cfg.Profiles != nil {
		mux.HandleFunc("GET /api/v1/personas", srv.handleListPersonas)
		mux.HandleFunc("GET /api/v1/personas/{id}", srv.handleGetPersona)
	}

	if lessonStore != nil {
		mux.HandleFunc("GET /api/v1/lessons", srv.handleListLessons)
		mux.HandleFunc("POST /api/v1/lessons", srv.handleCreateLesson)
		mux.HandleFunc("GET /api/v1/lessons/{id}", srv.handleGetLesson)
		mux.HandleFunc("DELETE /api/v1/lessons/{id}", srv.handleDeleteLesson)
		mux.HandleFunc("POST /api/v1/lessons/{id}/messages", srv.handleAddLessonMessage)
	}

	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.mux.ServeHTTP(w, r)
}

// Start starts the server.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s,
	}

	s.log.Info("[A2A] ═══════════════════════════════════════════════════════════════")
	s.log.Info("[A2A] Atlas Cortex A2A Server")
	s.log.Info("[A2A] ═══════════════════════════════════════════════════════════════")
	s.log.Info("[A2A] Agent: %s v%s", s.card.Name, s.card.Version)
	s.log.Info("[A2A] Protocol: A2A v%s", s.card.ProtocolVersion)
	s.log.Info("[A2A] Transport: %s", s.card.PreferredTransport)
	s.log.Info("[A2A] ───────────────────────────────────────────────────────────────")
	s.log.Info("[A2A] Skills (%d):", len(s.card.Skills))
	for _, skill := range s.card.Skills {
		s.log.Info("[A2A]   • %s: %s", skill.ID, skill.Name)
	}
	s.log.Info("[A2A] ───────────────────────────────────────────────────────────────")
	s.log.Info("[A2A] Endpoints:")
	s.log.Info("[A2A]   Agent Card:     http://localhost%s/.well-known/agent-card.json", addr)
	s.log.Info("[A2A]   JSON-RPC:       POST http://localhost%s/", addr)
	s.log.Info("[A2A]   LLM Providers:  GET http://localhost%s/api/llm/providers", addr)
	s.log.Info("[A2A]   LLM Chat:       POST http://localhost%s/api/llm/chat", addr)
	s.log.Info("[A2A]   Config:         GET/PUT http://localhost%s/api/config/providers", addr)
	s.log.Info("[A2A]   Auth:           POST http://localhost%s/api/auth/{login,register,refresh}", addr)
	s.log.Info("[A2A]   Metrics:        GET http://localhost%s/metrics", addr)
	s.log.Info("[A2A] ═══════════════════════════════════════════════════════════════")

	return s.server.ListenAndServe()
}

// Stop stops the server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.log.Info("[A2A] shutting down server...")
	return s.server.Shutdown(ctx)
}

// ═══════════════════════════════════════════════════════════════════════════════
// PERSONA HANDLERS
// ═══════════════════════════════════════════════════════════════════════════════

// PersonaResponse is the JSON response format for a household profile.
type PersonaResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	IsBuiltIn bool   `json:"is_built_in"`
}

// PersonasListResponse is the JSON response for listing profiles.
type PersonasListResponse struct {
	Personas []PersonaResponse `json:"personas"`
	Total    int               `json:"total"`
}

// handleListPersonas handles GET /api/v1/personas.
func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		s.writeError(w, http.StatusInternalServerError, "profile registry not configured")
		return
	}

	list := s.profiles.List()
	responses := make([]PersonaResponse, len(list))
	for i, p := range list {
		responses[i] = PersonaResponse{ID: p.ID, Name: p.Name, Role: p.Role, IsBuiltIn: p.IsBuiltIn}
	}

	s.writeJSON(w, http.StatusOK, PersonasListResponse{Personas: responses, Total: len(responses)})
}

// handleGetPersona handles GET /api/v1/personas/{id}.
func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		s.writeError(w, http.StatusInternalServerError, "profile registry not configured")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "profile ID required")
		return
	}

	p, ok := s.profiles.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "profile not found")
		return
	}

	s.writeJSON(w, http.StatusOK, PersonaResponse{ID: p.ID, Name: p.Name, Role: p.Role, IsBuiltIn: p.IsBuiltIn})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// ═══════════════════════════════════════════════════════════════════════════════
// LESSON HANDLERS
// ═══════════════════════════════════════════════════════════════════════════════

// LessonResponse is the JSON response format for a lesson.
type LessonResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	PersonaID  string `json:"persona_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Summary    string `json:"summary,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// LessonMessageResponse is the JSON response format for a lesson message.
type LessonMessageResponse struct {
	ID        int    `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// LessonsListResponse is the JSON response for listing lessons.
type LessonsListResponse struct {
	Lessons []LessonResponse `json:"lessons"`
	Total   int              `json:"total"`
}

// LessonDetailResponse is the JSON response for a single lesson with messages.
type LessonDetailResponse struct {
	LessonResponse
	Messages []LessonMessageResponse `json:"messages"`
}

func toLessonResponse(l *Lesson) LessonResponse {
	return LessonResponse{
		ID:        l.ID,
		UserID:    l.UserID,
		PersonaID: l.PersonaID,
		Title:     l.Title,
		Status:    l.Status,
		Summary:   l.Summary,
		CreatedAt: l.CreatedAt.Format(time.RFC3339),
		UpdatedAt: l.UpdatedAt.Format(time.RFC3339),
	}
}

// handleListLessons handles GET /api/v1/lessons?user_id=&persona_id=&limit=.
func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	personaID := r.URL.Query().Get("persona_id")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	limit := 20
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lessons, err := s.lessonStore.List(ctx, userID, personaID, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list lessons")
		return
	}

	responses := make([]LessonResponse, len(lessons))
	for i, l := range lessons {
		responses[i] = toLessonResponse(l)
	}
	s.writeJSON(w, http.StatusOK, LessonsListResponse{Lessons: responses, Total: len(responses)})
}

// handleCreateLesson handles POST /api/v1/lessons.
func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"user_id"`
		PersonaID string `json:"persona_id"`
		Title     string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.PersonaID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id and persona_id required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lesson, err := s.lessonStore.Create(ctx, req.UserID, req.PersonaID, req.Title)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to create lesson")
		return
	}

	s.writeJSON(w, http.StatusCreated, toLessonResponse(lesson))
}

// handleGetLesson handles GET /api/v1/lessons/{id}.
func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lesson, err := s.lessonStore.Get(ctx, id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "lesson not found")
		return
	}

	messages, err := s.lessonStore.GetMessages(ctx, id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	msgResponses := make([]LessonMessageResponse, len(messages))
	for i, m := range messages {
		msgResponses[i] = LessonMessageResponse{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt.Format(time.RFC3339)}
	}

	s.writeJSON(w, http.StatusOK, LessonDetailResponse{LessonResponse: toLessonResponse(lesson), Messages: msgResponses})
}

// handleDeleteLesson handles DELETE /api/v1/lessons/{id}.
func (s *Server) handleDeleteLesson(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.lessonStore.Delete(ctx, id); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to delete lesson")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddLessonMessage handles POST /api/v1/lessons/{id}/messages.
func (s *Server) handleAddLessonMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	msg, err := s.lessonStore.AddMessage(ctx, id, req.Role, req.Content)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to add message")
		return
	}

	s.writeJSON(w, http.StatusCreated, LessonMessageResponse{ID: msg.ID, Role: msg.Role, Content: msg.Content, CreatedAt: msg.CreatedAt.Format(time.RFC3339)})
}
