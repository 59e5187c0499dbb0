package core

import (
	"context"
)

// RunStatus is the provider-side lifecycle of one asynchronous assistant run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
	RunRequiresAction RunStatus = "requires_action"
)

// Terminal reports whether the status ends the run.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired:
		return true
	default:
		return false
	}
}

// Active reports whether the run still occupies its conversation. The
// provider rejects a second concurrent run on the same conversation.
func (s RunStatus) Active() bool {
	switch s {
	case RunQueued, RunInProgress, RunRequiresAction:
		return true
	default:
		return false
	}
}

// ToolCall is a structured function-call request extracted from a run
// paused in requires_action.
type ToolCall struct {
	ID            string `json:"id"`
	FunctionName  string `json:"function_name"`
	ArgumentsJSON string `json:"arguments_json"`
}

// ToolOutput is the result submitted back for one tool call. Every tool
// call must receive exactly one output before the run can progress.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

// RunState is a snapshot of a provider run as seen by one poll.
type RunState struct {
	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	LastError string     `json:"last_error,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// AgentConfig selects the provider-side agent for a new run.
type AgentConfig struct {
	AgentID      string `json:"agent_id"`
	Instructions string `json:"instructions,omitempty"`
}

// ConversationProvider is the asynchronous thread/run boundary the run
// driver depends on. Implementations wrap a remote LLM service; all calls
// are suspension points and must honor ctx.
type ConversationProvider interface {
	// CreateConversation starts a new provider-side message thread.
	CreateConversation(ctx context.Context) (string, error)

	// AppendUserMessage adds the user's turn to the conversation.
	AppendUserMessage(ctx context.Context, conversationID, text string) error

	// CreateRun starts an assistant run on the conversation.
	CreateRun(ctx context.Context, conversationID string, cfg AgentConfig) (string, error)

	// GetRun polls the current run state.
	GetRun(ctx context.Context, conversationID, runID string) (*RunState, error)

	// SubmitToolOutputs resolves a requires_action pause.
	SubmitToolOutputs(ctx context.Context, conversationID, runID string, outputs []ToolOutput) error

	// LatestAssistantMessage returns the newest assistant message text in the
	// conversation, or "" when none exists yet.
	LatestAssistantMessage(ctx context.Context, conversationID string) (string, error)

	// ActiveRuns lists runs still occupying the conversation.
	ActiveRuns(ctx context.Context, conversationID string) ([]RunState, error)
}

// HistoryTurn is one prior turn replayed into a single-shot call when no
// previous response id is available.
type HistoryTurn struct {
	Role    string
	Content string
}

// SingleShotOptions configures a synchronous response-with-tools call.
// History is ignored when PreviousResponseID is set; server-side
// continuity wins over client-supplied transcripts.
type SingleShotOptions struct {
	PreviousResponseID string
	Instructions       string
	Model              string
	History            []HistoryTurn
}

// SingleShotResponse is the result of the alternate synchronous API used by
// the voice-chat route. The response id doubles as the conversation ref for
// the next turn.
type SingleShotResponse struct {
	ID         string
	OutputText string
}

// ResponseProvider is the alternate single-shot boundary: one request, one
// completed response, conversation continuity via the previous response id.
type ResponseProvider interface {
	CreateResponseWithTools(ctx context.Context, input string, opts SingleShotOptions) (*SingleShotResponse, error)
}

// VisionProvider identifies the subject of an image given an instruction
// prompt. The image travels as a data URL.
type VisionProvider interface {
	LookupImage(ctx context.Context, prompt, imageDataURL string) (string, error)
}

// Transcriber converts audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}
