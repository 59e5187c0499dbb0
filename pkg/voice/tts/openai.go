// Package tts renders assistant replies as speech audio.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "tts-1"
	defaultVoice   = "alloy"

	// maxInputChars is the API limit on speech input length. Longer replies
	// are truncated at the last sentence boundary before the limit.
	maxInputChars = 4096
)

// Provider implements core.Synthesizer against the speech API.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates a speech provider with the default endpoint.
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
	return "openai-tts"
}

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// Synthesize converts text to mp3 audio bytes.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = defaultVoice
	}

	body, err := json.Marshal(speechRequest{
		Model: p.model,
		Input: truncateInput(text),
		Voice: voice,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("speech error %d: %s", resp.StatusCode, string(errBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}

// truncateInput caps text at the API limit, preferring a sentence boundary.
func truncateInput(text string) string {
	if len(text) <= maxInputChars {
		return text
	}
	cut := text[:maxInputChars]
	for i := len(cut) - 1; i > maxInputChars/2; i-- {
		switch cut[i] {
		case '.', '!', '?':
			return cut[:i+1]
		}
	}
	return cut
}
