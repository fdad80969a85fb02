package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProvider adapts an OpenAI-compatible speech synthesis endpoint
// (`POST /v1/audio/speech`, the shape served by kokoro-fastapi, xtts-api-server,
// and similar self-hosted TTS servers) to the voice.Provider interface, the
// same pattern llm.OllamaProvider uses for chat completions.
type HTTPProvider struct {
	name     string
	endpoint string
	client   *http.Client
	voices   []Voice
}

// NewHTTPProvider builds an HTTPProvider. name identifies it to the Router
// (e.g. "kokoro", "xtts"); endpoint is the base URL.
func NewHTTPProvider(name, endpoint string, voices []Voice) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		voices:   voices,
	}
}

func (p *HTTPProvider) Name() string { return p.name }

type httpSpeechRequest struct {
	Input  string  `json:"input"`
	Voice  string  `json:"voice"`
	Speed  float64 `json:"speed,omitempty"`
	Format string  `json:"response_format,omitempty"`
}

func (p *HTTPProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	start := time.Now()
	format := req.Format
	if format == "" {
		format = FormatWAV
	}

	body, err := json.Marshal(httpSpeechRequest{
		Input:  req.Text,
		Voice:  req.VoiceID,
		Speed:  req.Speed,
		Format: string(format),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build speech request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s synthesis request: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := readLimitedBody(resp.Body, 64*1024)
		return nil, fmt.Errorf("%s synthesis failed (%d): %s", p.name, resp.StatusCode, string(errBody))
	}

	audio, err := readLimitedBody(resp.Body, 50*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("read audio body: %w", err)
	}

	return &SynthesizeResponse{
		Audio:       audio,
		Format:      format,
		ProcessedMs: time.Since(start).Milliseconds(),
		VoiceID:     req.VoiceID,
		Provider:    p.name,
	}, nil
}

func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// httpAudioStream wraps a streamed HTTP response body as an AudioStream.
type httpAudioStream struct {
	io.ReadCloser
	format     AudioFormat
	sampleRate int
}

func (s *httpAudioStream) Format() AudioFormat { return s.format }
func (s *httpAudioStream) SampleRate() int     { return s.sampleRate }

func (p *HTTPProvider) Stream(ctx context.Context, req *SynthesizeRequest) (AudioStream, error) {
	format := req.Format
	if format == "" {
		format = FormatWAV
	}

	body, err := json.Marshal(httpSpeechRequest{Input: req.Text, Voice: req.VoiceID, Speed: req.Speed, Format: string(format)})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s stream request: %w", p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%s stream failed (%d)", p.name, resp.StatusCode)
	}

	sampleRate := req.SampleRate
	if sampleRate == 0 {
		sampleRate = 22050
	}
	return &httpAudioStream{ReadCloser: resp.Body, format: format, sampleRate: sampleRate}, nil
}

func (p *HTTPProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	return p.voices, nil
}

func (p *HTTPProvider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s health check returned %d", p.name, resp.StatusCode)
	}
	return nil
}

func (p *HTTPProvider) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{
		SupportedFormats: []AudioFormat{FormatWAV, FormatMP3, FormatPCM, FormatOpus},
	}
}
