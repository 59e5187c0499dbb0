// Package stt transcribes voice-chat audio to text.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "whisper-1"
)

// Provider implements core.Transcriber against the audio transcription API.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates a transcription provider with the default endpoint.
func New(apiKey string) *Provider {
	return &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// NewWithClient creates a provider with a custom endpoint and HTTP client.
func NewWithClient(apiKey, baseURL string, client *http.Client) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      defaultModel,
		httpClient: client,
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openai-stt"
}

// Transcribe converts audio to text. format is the container extension
// (wav, mp3, webm); unknown values fall back to wav.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", "audio."+normalizeExtension(format))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := mw.WriteField("model", p.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcription error %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return out.Text, nil
}

func normalizeExtension(format string) string {
	switch format {
	case "wav", "mp3", "webm", "ogg", "flac", "m4a", "mp4", "mpeg", "mpga", "oga":
		return format
	default:
		return "wav"
	}
}
