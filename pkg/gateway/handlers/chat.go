package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stampchat/stampchat/pkg/core"
	"github.com/stampchat/stampchat/pkg/core/types"
	"github.com/stampchat/stampchat/pkg/gateway/apierror"
	"github.com/stampchat/stampchat/pkg/gateway/config"
	"github.com/stampchat/stampchat/pkg/gateway/deadline"
	"github.com/stampchat/stampchat/pkg/gateway/dedup"
	"github.com/stampchat/stampchat/pkg/gateway/metrics"
	"github.com/stampchat/stampchat/pkg/gateway/mw"
	"github.com/stampchat/stampchat/pkg/gateway/runner"
	"github.com/stampchat/stampchat/pkg/gateway/sse"
	"github.com/stampchat/stampchat/pkg/gateway/textproc"
)

// TimeoutMessage is sent in the synthetic timeout frame when the deadline
// guard forces stream termination.
const TimeoutMessage = "The catalog is taking longer than usual. Here is what I have so far."

// SessionStore holds per-session continuity state. *session.Registry is
// the in-memory implementation for a single instance; multi-instance
// deployments can inject a store with a shared backing.
type SessionStore interface {
	Get(sessionID string) (string, bool)
	Update(sessionID, conversationRef string)
	RememberStamps(sessionID string, records []types.StampRecord)
	RecentStamps(sessionID string) []types.StampContext
	Count() int
}

// Deduper gates identical in-flight requests. *dedup.Deduplicator is the
// in-process implementation.
type Deduper interface {
	Begin(key string) (existing *dedup.Pending, claimed *dedup.Pending)
	End(key string)
	Count() int
}

// ChatHandler serves POST /v1/chat: the run-driven assistant path by
// default, the single-shot voice-chat path when voiceChat is set.
type ChatHandler struct {
	Config     config.Config
	Driver     *runner.Driver
	Registry   SessionStore
	Dedup      Deduper
	SingleShot core.ResponseProvider
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

func (h ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req types.ChatRequest
	if err := decodeBody(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if h.Config.MaxMessageChars > 0 && len(req.Message) > h.Config.MaxMessageChars {
		writeError(w, r, core.NewValidationErrorWithParam("message is too long", "message"))
		return
	}

	start := time.Now()
	if req.VoiceChat {
		h.serveVoiceChat(w, r, &req, start)
		return
	}
	h.serveAssistant(w, r, &req, start)
}

// serveAssistant drives the asynchronous run path: dedup, deadline guard,
// run driver, then stream or JSON delivery.
func (h ChatHandler) serveAssistant(w http.ResponseWriter, r *http.Request, req *types.ChatRequest, start time.Time) {
	key := dedup.Key(req.SessionID, req.Message)

	var relay *sse.Relay
	if req.Stream {
		var err error
		relay, err = sse.New(w, h.Logger)
		if err != nil {
			// Transport cannot stream; fall back to a JSON turn.
			req.Stream = false
		} else {
			sse.PrepareHeaders(w)
		}
	}

	existing, claimed := h.Dedup.Begin(key)
	if existing != nil {
		if h.Metrics != nil {
			h.Metrics.DedupJoinsTotal.Inc()
		}
		result, err := existing.Wait()
		if err != nil {
			h.deliverError(w, r, req, relay, err)
			return
		}
		h.deliver(w, req, relay, result, false)
		h.recordTurn("text", "dedup_join", start)
		return
	}
	defer h.Dedup.End(key)

	convRef, _ := h.Registry.Get(req.SessionID)

	var emit func(types.StreamEvent) bool
	if relay != nil {
		emit = relay.Emit
	}

	res := deadline.Race(r.Context(), h.Config.DeadlineBudget,
		func(ctx context.Context) (*runner.TurnResult, error) {
			return h.Driver.RunTurn(ctx, convRef, req.Message, emit)
		},
		func(ctx context.Context) (*runner.TurnResult, bool) {
			if convRef == "" {
				return nil, false
			}
			text, ok := h.Driver.SalvageLatest(ctx, convRef)
			if !ok {
				return nil, false
			}
			return &runner.TurnResult{Text: text, ConversationID: convRef, Partial: true}, true
		},
	)

	switch {
	case res.TimedOut:
		result := res.Value
		if !res.Salvaged {
			result = &runner.TurnResult{Text: runner.StillWorkingText, ConversationID: convRef, Partial: true}
		}
		if result.ConversationID != "" {
			h.Registry.Update(req.SessionID, result.ConversationID)
		}
		resp := h.buildResponse(req, result)
		claimed.Resolve(resp, nil)
		if h.Metrics != nil {
			h.Metrics.RecordSalvage("deadline")
		}
		h.deliver(w, req, relay, resp, true)
		h.recordTurn("text", "timeout", start)

	case res.Err != nil:
		claimed.Resolve(nil, res.Err)
		h.deliverError(w, r, req, relay, res.Err)
		h.recordTurn("text", "error", start)

	default:
		result := res.Value
		h.Registry.Update(req.SessionID, result.ConversationID)
		if result.Presentation != nil {
			h.Registry.RememberStamps(req.SessionID, result.Presentation.Items)
		}
		resp := h.buildResponse(req, result)
		claimed.Resolve(resp, nil)
		if result.Partial {
			if h.Metrics != nil {
				h.Metrics.RecordSalvage("poll_budget")
			}
			h.deliver(w, req, relay, resp, true)
			h.recordTurn("text", "partial", start)
			return
		}
		h.deliver(w, req, relay, resp, false)
		h.recordTurn("text", "complete", start)
	}
}

// serveVoiceChat runs one synchronous single-shot turn with conversation
// continuity via the previous response id and referent memory folded into
// the instructions.
func (h ChatHandler) serveVoiceChat(w http.ResponseWriter, r *http.Request, req *types.ChatRequest, start time.Time) {
	if h.SingleShot == nil {
		writeError(w, r, core.NewAPIError("voice chat is not configured"))
		return
	}

	prevID, _ := h.Registry.Get(req.SessionID)

	var history []core.HistoryTurn
	if prevID == "" {
		for _, item := range req.ConversationHistory {
			history = append(history, core.HistoryTurn(item))
		}
	}

	resp, err := h.SingleShot.CreateResponseWithTools(r.Context(), req.Message, core.SingleShotOptions{
		PreviousResponseID: prevID,
		Instructions:       h.voiceInstructions(req.SessionID),
		Model:              h.Config.ResponseModel,
		History:            history,
	})
	if err != nil {
		h.deliverError(w, r, req, nil, err)
		h.recordTurn("voice", "error", start)
		return
	}

	h.Registry.Update(req.SessionID, resp.ID)

	result := &runner.TurnResult{
		Text:           textproc.Clean(resp.OutputText),
		ConversationID: resp.ID,
	}
	if rec, ok := textproc.ExtractStamp(result.Text); ok {
		result.Presentation = types.NewPresentation([]types.StampRecord{rec})
		result.FoundStamps = 1
		h.Registry.RememberStamps(req.SessionID, []types.StampRecord{rec})
	}
	if result.Text == "" {
		result.Text = runner.FallbackReply
	}

	h.deliver(w, req, nil, h.buildResponse(req, result), false)
	h.recordTurn("voice", "complete", start)
}

// voiceInstructions folds recent stamp referents into the base instructions
// so pronoun-style follow-ups resolve against what the user just saw.
func (h ChatHandler) voiceInstructions(sessionID string) string {
	instr := h.Config.Instructions

	recent := h.Registry.RecentStamps(sessionID)
	if len(recent) == 0 {
		return instr
	}

	var sb strings.Builder
	sb.WriteString(instr)
	sb.WriteString("\n\nStamps discussed recently, oldest first:")
	for _, sc := range recent {
		sb.WriteString("\n- ")
		sb.WriteString(describeStamp(sc.Record))
	}
	return sb.String()
}

func describeStamp(rec types.StampRecord) string {
	parts := make([]string, 0, 4)
	if rec.Name != "" {
		parts = append(parts, rec.Name)
	}
	if rec.Country != "" {
		parts = append(parts, rec.Country)
	}
	if rec.IssueYear != "" {
		parts = append(parts, rec.IssueYear)
	}
	if rec.Denomination != "" {
		parts = append(parts, rec.Denomination)
	}
	if len(parts) == 0 {
		return "unidentified stamp"
	}
	return strings.Join(parts, ", ")
}

func (h ChatHandler) buildResponse(req *types.ChatRequest, result *runner.TurnResult) *types.ChatResponse {
	return &types.ChatResponse{
		Response:       result.Text,
		StructuredData: result.Presentation,
		FoundStamps:    result.FoundStamps,
		SessionID:      req.SessionID,
	}
}

// deliver sends the settled turn to the client. Streaming turns get the
// whole text first, then cosmetic chunk re-streaming, so an interrupted
// chunk phase still leaves the client with a complete answer. relay may be
// nil for paths that never opened a stream.
func (h ChatHandler) deliver(w http.ResponseWriter, req *types.ChatRequest, relay *sse.Relay, resp *types.ChatResponse, timedOut bool) {
	if !req.Stream || relay == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	relay.Emit(types.CompleteResponseEvent{Type: "complete_response", Content: resp.Response})
	if resp.StructuredData != nil {
		relay.Emit(types.StructuredDataEvent{Type: "structured_data", Data: resp.StructuredData})
	}
	relay.StreamChunks(resp.Response, h.Config.ChunkWords, h.Config.ChunkDelay)
	if timedOut {
		relay.Emit(types.TimeoutEvent{Type: "timeout", Message: TimeoutMessage})
	}
	relay.Emit(types.CompleteEvent{Type: "complete"})
}

// deliverError converts a turn failure into a terminal frame on streams and
// a canonical envelope otherwise. Errors never propagate past the relay.
func (h ChatHandler) deliverError(w http.ResponseWriter, r *http.Request, req *types.ChatRequest, relay *sse.Relay, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	coreErr, status := apierror.FromError(err, reqID)
	if h.Metrics != nil {
		h.Metrics.RecordError(string(coreErr.Type))
	}

	if !req.Stream || relay == nil {
		writeJSON(w, status, apierror.Envelope{Error: coreErr})
		return
	}

	relay.Emit(types.ErrorEvent{Type: "error", Error: "I encountered an error while looking that up. Please try again.", Code: string(coreErr.Type)})
	relay.Emit(types.CompleteEvent{Type: "complete"})
}

func (h ChatHandler) recordTurn(mode, outcome string, start time.Time) {
	if h.Metrics == nil {
		return
	}
	h.Metrics.RecordTurn(mode, outcome, time.Since(start))
	h.Metrics.SessionsActive.Set(float64(h.Registry.Count()))
}
