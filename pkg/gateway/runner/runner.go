package runner

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/stampchat/stampchat/pkg/core"
	"github.com/stampchat/stampchat/pkg/core/types"
	"github.com/stampchat/stampchat/pkg/gateway/textproc"
	"github.com/stampchat/stampchat/pkg/gateway/tools"
)

// Defaults tuned to stay under the host execution-time ceiling: 12 polls at
// 750ms is ~9s of polling, inside the deadline guard's budget plus margin.
const (
	DefaultPollInterval   = 750 * time.Millisecond
	DefaultMaxPolls       = 12
	DefaultKeepAliveEvery = 4
	DefaultActiveRunWait  = 5 * time.Second
)

// StillWorkingText is streamed when the attempt budget runs out and no
// partial assistant message exists yet.
const StillWorkingText = "I'm still digging through the catalog. Please ask me again in a moment."

// Driver advances one conversation turn by driving a provider run to a
// terminal state: create, poll, resolve requires_action, drain to
// completion. On an exhausted attempt budget it degrades to the best
// partial output available instead of failing the turn.
type Driver struct {
	Provider core.ConversationProvider
	Resolver *tools.Resolver
	Agent    core.AgentConfig
	Logger   *slog.Logger

	PollInterval   time.Duration
	MaxPolls       int
	KeepAliveEvery int
	ActiveRunWait  time.Duration

	// OnPoll, when set, observes every run status fetch.
	OnPoll func()

	// now is an injected clock for keep-alive timestamps.
	now func() time.Time
}

// TurnResult is the terminal outcome of one turn.
type TurnResult struct {
	Text           string
	Presentation   *types.Presentation
	FoundStamps    int
	ConversationID string
	// Partial marks a salvaged, possibly incomplete answer.
	Partial bool
}

func (d *Driver) pollInterval() time.Duration {
	if d.PollInterval > 0 {
		return d.PollInterval
	}
	return DefaultPollInterval
}

func (d *Driver) maxPolls() int {
	if d.MaxPolls > 0 {
		return d.MaxPolls
	}
	return DefaultMaxPolls
}

func (d *Driver) keepAliveEvery() int {
	if d.KeepAliveEvery > 0 {
		return d.KeepAliveEvery
	}
	return DefaultKeepAliveEvery
}

func (d *Driver) activeRunWait() time.Duration {
	if d.ActiveRunWait > 0 {
		return d.ActiveRunWait
	}
	return DefaultActiveRunWait
}

func (d *Driver) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// RunTurn appends the user message to the conversation (creating one when
// conversationID is empty), drives a fresh run to completion, and returns
// the final text plus any structured presentation. Events are relayed
// through emit as they occur; emit may be nil for non-streaming turns.
func (d *Driver) RunTurn(ctx context.Context, conversationID, message string, emit tools.EmitFunc) (*TurnResult, error) {
	if conversationID == "" {
		id, err := d.Provider.CreateConversation(ctx)
		if err != nil {
			return nil, err
		}
		conversationID = id
	} else if err := d.waitForActiveRuns(ctx, conversationID); err != nil {
		return nil, err
	}

	if err := d.Provider.AppendUserMessage(ctx, conversationID, message); err != nil {
		return nil, err
	}

	runID, err := d.Provider.CreateRun(ctx, conversationID, d.Agent)
	if err != nil {
		return nil, err
	}

	return d.drive(ctx, conversationID, runID, emit)
}

// waitForActiveRuns blocks until no other run occupies the conversation.
// The provider rejects concurrent runs on one conversation. The wait is
// bounded: after activeRunWait it gives up and lets CreateRun surface the
// conflict rather than blocking forever.
func (d *Driver) waitForActiveRuns(ctx context.Context, conversationID string) error {
	deadline := d.clock().Add(d.activeRunWait())
	for {
		active, err := d.Provider.ActiveRuns(ctx, conversationID)
		if err != nil {
			return err
		}
		busy := false
		for _, run := range active {
			if run.Status.Active() {
				busy = true
				break
			}
		}
		if !busy {
			return nil
		}
		if d.clock().After(deadline) {
			d.logger().Warn("gave up waiting for active runs", "conversation_id", conversationID)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.pollInterval()):
		}
	}
}

// drive polls the run at a fixed cadence until a terminal state, an
// interrupt, or the attempt budget runs out.
func (d *Driver) drive(ctx context.Context, conversationID, runID string, emit tools.EmitFunc) (*TurnResult, error) {
	var resolution *tools.Resolution

	for attempt := 1; attempt <= d.maxPolls(); attempt++ {
		if d.OnPoll != nil {
			d.OnPoll()
		}
		state, err := d.Provider.GetRun(ctx, conversationID, runID)
		if err != nil {
			return nil, err
		}

		if emit != nil {
			emit(types.StatusEvent{Type: "status", Status: string(state.Status)})
			if attempt%d.keepAliveEvery() == 0 {
				emit(types.KeepAliveEvent{Type: "keep-alive", Timestamp: d.clock().UnixMilli()})
			}
		}

		switch state.Status {
		case core.RunCompleted:
			return d.finish(ctx, conversationID, resolution, false)

		case core.RunFailed, core.RunCancelled, core.RunExpired:
			msg := state.LastError
			if msg == "" {
				msg = "run ended in status " + string(state.Status)
			}
			return nil, core.NewUpstreamFailureError(msg, string(state.Status))

		case core.RunRequiresAction:
			res, err := d.Resolver.Resolve(ctx, conversationID, runID, state.ToolCalls, emit)
			if err != nil {
				return nil, err
			}
			resolution = res
			// The run re-enters in_progress after the submission; keep
			// polling the same run to drain it to completed.

		case core.RunQueued, core.RunInProgress:
			// Keep polling.

		default:
			d.logger().Warn("unknown run status", "status", state.Status, "run_id", runID)
		}

		if attempt < d.maxPolls() {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.pollInterval()):
			}
		}
	}

	// Attempt budget exhausted while the run was still queued/in_progress.
	// This is not a failure: salvage whatever assistant output exists.
	d.logger().Info("poll budget exhausted, salvaging", "conversation_id", conversationID, "run_id", runID)
	return d.finish(ctx, conversationID, resolution, true)
}

// finish fetches the newest assistant message, cleans it, and assembles the
// turn result. When partial is set and no message exists yet, a generic
// still-working filler is used so the client never hangs empty-handed.
func (d *Driver) finish(ctx context.Context, conversationID string, resolution *tools.Resolution, partial bool) (*TurnResult, error) {
	text, err := d.Provider.LatestAssistantMessage(ctx, conversationID)
	if err != nil {
		if !partial {
			return nil, err
		}
		text = ""
	}
	text = textproc.Clean(text)

	result := &TurnResult{
		Text:           text,
		ConversationID: conversationID,
		Partial:        partial,
	}

	switch {
	case resolution != nil:
		result.Presentation = resolution.Presentation
		result.FoundStamps = len(resolution.Records)
		if result.Text == "" && resolution.Fallback != "" {
			result.Text = resolution.Fallback
		}
	case result.Text != "":
		// No structured tool output this turn: best-effort extraction from
		// prose, non-authoritative, only to avoid returning nothing shaped.
		if rec, ok := textproc.ExtractStamp(result.Text); ok {
			result.Presentation = types.NewPresentation([]types.StampRecord{rec})
			result.FoundStamps = 1
		}
	}

	if result.Text == "" {
		if partial {
			result.Text = StillWorkingText
		} else if resolution != nil && resolution.Fallback != "" {
			result.Text = resolution.Fallback
		} else {
			result.Text = FallbackReply
		}
	}
	return result, nil
}

// FallbackReply is the last-resort reply when a completed run produced no
// assistant message at all.
const FallbackReply = "I was not able to put together an answer for that. Could you rephrase the question?"

// SalvageLatest is the deadline-guard salvage read: one fetch of the newest
// partial assistant message for the conversation.
func (d *Driver) SalvageLatest(ctx context.Context, conversationID string) (string, bool) {
	text, err := d.Provider.LatestAssistantMessage(ctx, conversationID)
	if err != nil {
		d.logger().Warn("salvage read failed", "conversation_id", conversationID, "error", err)
		return "", false
	}
	text = textproc.Clean(strings.TrimSpace(text))
	return text, text != ""
}
