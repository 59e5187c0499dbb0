// Package assistants drives conversations through the OpenAI Assistants v2
// API: threads, messages, runs, and tool-output submission.
package assistants

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stampchat/stampchat/pkg/core"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	betaHeader     = "assistants=v2"
)

// Client implements core.ConversationProvider against the Assistants API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a client with the default endpoint and a 30s HTTP timeout.
// Individual calls are still bounded by their context.
func New(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithClient creates a client with a custom endpoint and HTTP client.
func NewWithClient(apiKey, baseURL string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: client,
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return "assistants"
}

// CreateConversation creates an empty thread and returns its id.
func (c *Client) CreateConversation(ctx context.Context) (string, error) {
	var resp threadResponse
	if err := c.do(ctx, "POST", "/threads", struct{}{}, &resp); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return resp.ID, nil
}

// AppendUserMessage adds a user-role message to the thread.
func (c *Client) AppendUserMessage(ctx context.Context, conversationID, text string) error {
	body := map[string]string{"role": "user", "content": text}
	if err := c.do(ctx, "POST", "/threads/"+conversationID+"/messages", body, nil); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// CreateRun starts a run of the configured agent on the thread.
func (c *Client) CreateRun(ctx context.Context, conversationID string, cfg core.AgentConfig) (string, error) {
	body := map[string]string{"assistant_id": cfg.AgentID}
	if cfg.Instructions != "" {
		body["instructions"] = cfg.Instructions
	}
	var resp runResponse
	if err := c.do(ctx, "POST", "/threads/"+conversationID+"/runs", body, &resp); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return resp.ID, nil
}

// GetRun fetches the current state of a run, including any pending tool
// calls when the run requires action.
func (c *Client) GetRun(ctx context.Context, conversationID, runID string) (*core.RunState, error) {
	var resp runResponse
	if err := c.do(ctx, "GET", "/threads/"+conversationID+"/runs/"+runID, nil, &resp); err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return resp.toRunState(), nil
}

// SubmitToolOutputs posts tool results back to a run blocked on
// requires_action. The API rejects partial submissions, so callers must
// include one output per pending call.
func (c *Client) SubmitToolOutputs(ctx context.Context, conversationID, runID string, outputs []core.ToolOutput) error {
	type wireOutput struct {
		ToolCallID string `json:"tool_call_id"`
		Output     string `json:"output"`
	}
	wire := make([]wireOutput, len(outputs))
	for i, o := range outputs {
		wire[i] = wireOutput{ToolCallID: o.ToolCallID, Output: o.Output}
	}
	body := map[string]any{"tool_outputs": wire}
	path := "/threads/" + conversationID + "/runs/" + runID + "/submit_tool_outputs"
	if err := c.do(ctx, "POST", path, body, nil); err != nil {
		return fmt.Errorf("submit tool outputs: %w", err)
	}
	return nil
}

// LatestAssistantMessage returns the text of the newest assistant message
// in the thread, or empty when none exists yet.
func (c *Client) LatestAssistantMessage(ctx context.Context, conversationID string) (string, error) {
	var resp messageListResponse
	path := "/threads/" + conversationID + "/messages?order=desc&limit=10"
	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	for _, msg := range resp.Data {
		if msg.Role != "assistant" {
			continue
		}
		for _, part := range msg.Content {
			if part.Type == "text" && part.Text.Value != "" {
				return part.Text.Value, nil
			}
		}
	}
	return "", nil
}

// ActiveRuns lists runs on the thread that are still queued, in progress,
// or waiting on tool outputs.
func (c *Client) ActiveRuns(ctx context.Context, conversationID string) ([]core.RunState, error) {
	var resp runListResponse
	if err := c.do(ctx, "GET", "/threads/"+conversationID+"/runs?limit=10", nil, &resp); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var active []core.RunState
	for _, run := range resp.Data {
		state := run.toRunState()
		if state.Status.Active() {
			active = append(active, *state)
		}
	}
	return active, nil
}

// do executes one API call. A nil out skips response decoding.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", betaHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return core.NewUpstreamTimeoutError("assistants request timed out")
		}
		return fmt.Errorf("assistants request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// decodeAPIError maps the API error envelope onto the gateway taxonomy.
func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	message := string(data)
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.NewAuthenticationError(message)
	case http.StatusTooManyRequests:
		return core.NewRateLimitError(message)
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict:
		return core.NewAPIError(fmt.Sprintf("assistants error %d: %s", resp.StatusCode, message))
	default:
		return core.NewUpstreamFailureError(
			fmt.Sprintf("assistants error %d: %s", resp.StatusCode, message),
			envelope.Error.Code,
		)
	}
}

type threadResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	RequiredAction *struct {
		Type              string `json:"type"`
		SubmitToolOutputs struct {
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"submit_tool_outputs"`
	} `json:"required_action,omitempty"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error,omitempty"`
}

func (r runResponse) toRunState() *core.RunState {
	state := &core.RunState{
		ID:     r.ID,
		Status: core.RunStatus(r.Status),
	}
	if r.LastError != nil {
		state.LastError = r.LastError.Message
	}
	if r.RequiredAction != nil {
		for _, tc := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
			state.ToolCalls = append(state.ToolCalls, core.ToolCall{
				ID:            tc.ID,
				FunctionName:  tc.Function.Name,
				ArgumentsJSON: tc.Function.Arguments,
			})
		}
	}
	return state
}

type runListResponse struct {
	Data []runResponse `json:"data"`
}

type messageListResponse struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}
