package satellite

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atlas-cortex/cortex/internal/logging"
)

// State is a satellite session's position in its connection lifecycle.
type State string

const (
	StateConnecting  State = "connecting"
	StateAnnounced   State = "announced"
	StateIdle        State = "idle"
	StateListening   State = "listening"
	StateSpeaking    State = "speaking"
	StateInterrupted State = "interrupted" // transient: Speaking -> Interrupted -> Idle
)

// Incoming frame types, sent by the satellite device to the gateway.
const (
	FrameAnnounce   = "ANNOUNCE"
	FrameWake       = "WAKE"
	FrameAudioStart = "AUDIO_START"
	FrameAudioChunk = "AUDIO_CHUNK"
	FrameAudioEnd   = "AUDIO_END"
	FrameStatus     = "STATUS"
	FrameHeartbeat  = "HEARTBEAT"
)

// Outgoing frame types, sent by the gateway to the satellite device.
const (
	FrameAccepted    = "ACCEPTED"
	FrameTTSStart    = "TTS_START"
	FrameTTSChunk    = "TTS_CHUNK"
	FrameTTSEnd      = "TTS_END"
	FramePlayFiller  = "PLAY_FILLER"
	FrameCommand     = "COMMAND"
	FrameConfig      = "CONFIG"
	FrameSyncFillers = "SYNC_FILLERS"
)

// Frame is the wire envelope for every message exchanged with a satellite.
// Audio travels as base64 inside Audio via the default json encoding of []byte.
type Frame struct {
	Type     string            `json:"type"`
	UserID   string            `json:"user_id,omitempty"`
	Text     string            `json:"text,omitempty"`
	Audio    []byte            `json:"audio,omitempty"`
	FillerID string            `json:"filler_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Driver is the narrow slice of the Pipeline Driver a satellite session
// needs: turn a transcript into a reply. Mirrors transport.Driver — a
// separate type so this package doesn't import transport's.
type Driver interface {
	Process(ctx context.Context, userID, personaID, input string) (Result, error)
}

// Result is the outcome of one Driver.Process call.
type Result struct {
	Text string
}

// Transcriber turns a satellite's captured audio into text. A real deployment
// wires this to the STT Router (internal/voice); it is optional here because
// this package's job is the session/frame state machine, not speech
// recognition itself.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer turns a reply into audio bytes for TTS_CHUNK framing. A real
// deployment wires this to the TTS Bridge's Router.Speak.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// FillerProvider supplies a short filler phrase id/text to cover
// response-start latency, matching orchestrator.FillerProvider's shape.
type FillerProvider interface {
	Filler(ctx context.Context, userID, sentiment string) (string, error)
}

const ttsChunkSize = 32 * 1024

// ServerConfig addresses the gateway's heartbeat and framing behavior. Values
// come from config.SatelliteConfig.
type ServerConfig struct {
	Path         string
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the Satellite Gateway (component K): one session per connected
// satellite over a websocket, each running the
// Connecting -> Announced -> Idle <-> Listening <-> Speaking state machine
// with Interrupted as a transient Speaking -> Idle step.
type Server struct {
	cfg         ServerConfig
	driver      Driver
	transcriber Transcriber
	synth       Synthesizer
	filler      FillerProvider
	upgrader    websocket.Upgrader
	log         *logging.Logger

	mu       sync.Mutex
	sessions map[*session]struct{}
}

// NewServer builds a Satellite Gateway. transcriber and synth may be nil,
// in which case AUDIO_* frames are accepted but produce no reply, and
// FillGenerator output from the Driver is sent as TTS_END-only text frames
// without PCM audio.
func NewServer(cfg ServerConfig, driver Driver, transcriber Transcriber, synth Synthesizer, filler FillerProvider, log *logging.Logger) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Server{
		cfg:         cfg,
		driver:      driver,
		transcriber: transcriber,
		synth:       synth,
		filler:      filler,
		log:         log,
		sessions:    make(map[*session]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes mounts the gateway's websocket endpoint on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	path := s.cfg.Path
	if path == "" {
		path = "/ws/satellite"
	}
	mux.HandleFunc(path, s.handleConnect)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("[Satellite] upgrade failed: %v", err)
		return
	}

	sess := &session{
		srv:       s,
		conn:      conn,
		state:     StateConnecting,
		heartbeat: make(chan struct{}, 1),
		closed:    make(chan struct{}),
	}
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	s.log.Info("[Satellite] connection from %s", r.RemoteAddr)
	go sess.run()
}

func (s *Server) forget(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

// session drives one satellite's state machine over its websocket
// connection, grounded on the teacher's WebSocketHandler/VoiceBridge
// websocket loop (internal/voice/websocket.go) but reworked around the
// gateway's own frame set and state transitions rather than the browser
// voice-client protocol.
type session struct {
	srv  *Server
	conn *websocket.Conn

	mu      sync.Mutex
	state   State
	userID  string
	persona string

	audioBuf  []byte
	heartbeat chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func (sess *session) run() {
	defer sess.close()

	go sess.watchHeartbeat()

	for {
		var f Frame
		if err := sess.conn.ReadJSON(&f); err != nil {
			return
		}
		sess.handleFrame(&f)
	}
}

func (sess *session) setState(s State) {
	sess.mu.Lock()
	sess.state = s
	sess.mu.Unlock()
}

func (sess *session) getState() State {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state
}

func (sess *session) resetAudio() {
	sess.mu.Lock()
	sess.audioBuf = nil
	sess.mu.Unlock()
}

func (sess *session) appendAudio(chunk []byte) {
	sess.mu.Lock()
	sess.audioBuf = append(sess.audioBuf, chunk...)
	sess.mu.Unlock()
}

func (sess *session) handleFrame(f *Frame) {
	switch f.Type {
	case FrameAnnounce:
		sess.mu.Lock()
		sess.userID = f.UserID
		sess.mu.Unlock()
		sess.setState(StateAnnounced)
		sess.send(&Frame{Type: FrameAccepted})
		sess.setState(StateIdle)
		sess.notifyHeartbeat()

	case FrameHeartbeat:
		sess.notifyHeartbeat()

	case FrameWake:
		switch sess.getState() {
		case StateIdle:
			sess.setState(StateListening)
			sess.resetAudio()
		case StateSpeaking:
			sess.interrupt()
		}

	case FrameAudioStart:
		sess.setState(StateListening)
		sess.resetAudio()

	case FrameAudioChunk:
		if sess.getState() == StateListening {
			sess.appendAudio(f.Audio)
		}

	case FrameAudioEnd:
		if sess.getState() == StateListening {
			go sess.handleUtterance()
		}

	case FrameStatus:
		// Telemetry only; no state transition.

	default:
		sess.srv.log.Debug("[Satellite] unhandled frame type %q", f.Type)
	}
}

// handleUtterance transcribes the captured audio (if a Transcriber is
// wired), asks the Pipeline Driver for a reply, plays a filler if the
// reply isn't ready quickly, and streams the reply back as TTS frames.
func (sess *session) handleUtterance() {
	sess.setState(StateSpeaking)
	defer sess.setState(StateIdle)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sess.mu.Lock()
	audio := sess.audioBuf
	userID := sess.userID
	sess.mu.Unlock()

	text, err := sess.transcript(ctx, audio)
	if err != nil || text == "" {
		return
	}

	resultCh := make(chan Result, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := sess.srv.driver.Process(ctx, userID, userID, text)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- res
	}()

	if sess.srv.filler != nil {
		select {
		case res := <-resultCh:
			sess.speak(ctx, res.Text)
			return
		case err := <-errCh:
			sess.srv.log.Error("[Satellite] pipeline error: %v", err)
			return
		case <-time.After(700 * time.Millisecond):
			phrase, ferr := sess.srv.filler.Filler(ctx, userID, "neutral")
			if ferr == nil && phrase != "" {
				sess.send(&Frame{Type: FramePlayFiller, Text: phrase})
			}
		}
	}

	select {
	case res := <-resultCh:
		sess.speak(ctx, res.Text)
	case err := <-errCh:
		sess.srv.log.Error("[Satellite] pipeline error: %v", err)
	case <-ctx.Done():
	}
}

func (sess *session) transcript(ctx context.Context, audio []byte) (string, error) {
	if sess.srv.transcriber == nil || len(audio) == 0 {
		return "", nil
	}
	return sess.srv.transcriber.Transcribe(ctx, audio)
}

func (sess *session) speak(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if sess.getState() == StateInterrupted {
		return
	}

	sess.send(&Frame{Type: FrameTTSStart})

	if sess.srv.synth != nil {
		audio, err := sess.srv.synth.Synthesize(ctx, text)
		if err == nil {
			for i := 0; i < len(audio); i += ttsChunkSize {
				if sess.getState() == StateInterrupted {
					break
				}
				end := i + ttsChunkSize
				if end > len(audio) {
					end = len(audio)
				}
				sess.send(&Frame{Type: FrameTTSChunk, Audio: audio[i:end]})
			}
		} else {
			sess.srv.log.Warn("[Satellite] synthesis failed, sending text-only reply: %v", err)
			sess.send(&Frame{Type: FrameTTSChunk, Text: text})
		}
	} else {
		sess.send(&Frame{Type: FrameTTSChunk, Text: text})
	}

	sess.send(&Frame{Type: FrameTTSEnd})
}

// interrupt transitions a Speaking session to Interrupted then Idle,
// matching the spec's transient Speaking -> Interrupted -> Idle path. It is
// triggered by a WAKE frame arriving while the session is Speaking.
func (sess *session) interrupt() {
	if sess.getState() == StateSpeaking {
		sess.setState(StateInterrupted)
	}
}

func (sess *session) notifyHeartbeat() {
	select {
	case sess.heartbeat <- struct{}{}:
	default:
	}
}

// watchHeartbeat closes the session if no HEARTBEAT (or ANNOUNCE) frame
// arrives within the configured pong timeout.
func (sess *session) watchHeartbeat() {
	timeout := sess.srv.cfg.PongTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-sess.closed:
			return
		case <-sess.heartbeat:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(timeout)
		case <-timer.C:
			sess.srv.log.Warn("[Satellite] heartbeat timeout, closing session")
			sess.close()
			return
		}
	}
}

func (sess *session) send(f *Frame) {
	sess.conn.SetWriteDeadline(time.Now().Add(sess.srv.cfg.WriteTimeout))
	if err := sess.conn.WriteJSON(f); err != nil {
		sess.srv.log.Debug("[Satellite] write failed: %v", err)
	}
}

func (sess *session) close() {
	sess.closeOnce.Do(func() {
		close(sess.closed)
		sess.conn.Close()
		sess.srv.forget(sess)
	})
}
