package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/stampchat/stampchat/pkg/core"
	"github.com/stampchat/stampchat/pkg/core/types"
)

// EmitFunc forwards a stream event to the client. A false return means the
// transport is gone; emission is best-effort either way. Nil is allowed for
// non-streaming turns.
type EmitFunc func(event types.StreamEvent) bool

// FallbackText is returned to the model when a tool call carried no valid
// stamp records.
const FallbackText = "I could not find a matching stamp in the catalog. Could you share a name, country, or year?"

// Resolver handles a run paused in requires_action: it validates the
// function-call arguments, shapes the presentation, and submits tool outputs
// so the run can progress. Omitting the submission would leave the run stuck
// in requires_action, so outputs are always sent, neutral ones included.
type Resolver struct {
	Provider core.ConversationProvider
	Logger   *slog.Logger

	// OnToolCall, when set, observes every resolved call by function name
	// and outcome ("ok" or "empty").
	OnToolCall func(function, outcome string)
}

// Resolution is the outcome of one requires_action round trip.
type Resolution struct {
	// Records are the validated stamp records, provider order preserved.
	Records []types.StampRecord
	// Presentation is nil when no record survived validation.
	Presentation *types.Presentation
	// Fallback is set instead of a presentation when validation rejected
	// every candidate.
	Fallback string
}

// Resolve validates calls, emits preview frames, and submits tool outputs.
// The returned error only reflects the submission round trip; validation
// failures resolve to a neutral output, not an error.
func (r *Resolver) Resolve(ctx context.Context, conversationID, runID string, calls []core.ToolCall, emit EmitFunc) (*Resolution, error) {
	res := &Resolution{}
	outputs := make([]core.ToolOutput, 0, len(calls))

	for _, call := range calls {
		records, parseErr := ParseStampArguments(call.ArgumentsJSON)
		if parseErr != nil && r.Logger != nil {
			r.Logger.Warn("malformed tool arguments",
				"tool_call_id", call.ID,
				"function", call.FunctionName,
				"error", parseErr,
			)
		}

		valid := records[:0:0]
		for _, rec := range records {
			if rec.Identified() {
				valid = append(valid, rec)
			}
		}
		res.Records = append(res.Records, valid...)
		outputs = append(outputs, core.ToolOutput{
			ToolCallID: call.ID,
			Output:     encodeOutput(valid),
		})
		if r.OnToolCall != nil {
			outcome := "ok"
			if len(valid) == 0 {
				outcome = "empty"
			}
			r.OnToolCall(call.FunctionName, outcome)
		}
	}

	if len(res.Records) > 0 {
		res.Presentation = types.NewPresentation(res.Records)
		// Preview frames go out before the tool-output round trip completes
		// so the client can render without waiting for follow-up prose.
		if emit != nil {
			emit(types.StampPreviewEvent{Type: "stamp_preview", Data: res.Records})
			emit(types.RawStampDataEvent{Type: "raw_stamp_data", Data: res.Records})
		}
	} else {
		res.Fallback = FallbackText
	}

	if err := r.Provider.SubmitToolOutputs(ctx, conversationID, runID, outputs); err != nil {
		return res, core.NewProtocolError("submit tool outputs: " + err.Error())
	}
	return res, nil
}

// encodeOutput shapes the tool output JSON submitted back to the provider.
func encodeOutput(records []types.StampRecord) string {
	payload := struct {
		Found  int                 `json:"found"`
		Stamps []types.StampRecord `json:"stamps,omitempty"`
		Note   string              `json:"note,omitempty"`
	}{Found: len(records), Stamps: records}
	if len(records) == 0 {
		payload.Note = "no valid stamp records; ask the user for a name, country, or year"
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return `{"found":0}`
	}
	return string(b)
}

// ParseStampArguments extracts candidate stamp records from function-call
// arguments. Accepts a bare record object or a list under a handful of
// conventional keys, with tolerant field-name casing.
func ParseStampArguments(argumentsJSON string) ([]types.StampRecord, error) {
	trimmed := strings.TrimSpace(argumentsJSON)
	if trimmed == "" {
		return nil, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, core.NewProtocolError("tool arguments are not a JSON object")
	}

	for _, key := range [...]string{"stamps", "records", "results", "items"} {
		if list, ok := lookup(raw, key); ok {
			var entries []map[string]any
			if err := json.Unmarshal(list, &entries); err != nil {
				return nil, core.NewProtocolError("tool argument list is malformed")
			}
			records := make([]types.StampRecord, 0, len(entries))
			for _, e := range entries {
				records = append(records, recordFromFields(e))
			}
			return records, nil
		}
	}

	// No list key: treat the whole object as a single candidate record.
	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, core.NewProtocolError("tool arguments are malformed")
	}
	return []types.StampRecord{recordFromFields(fields)}, nil
}

func lookup(raw map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	for k, v := range raw {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func recordFromFields(fields map[string]any) types.StampRecord {
	get := func(names ...string) string {
		for name, value := range fields {
			for _, want := range names {
				if strings.EqualFold(name, want) {
					switch v := value.(type) {
					case string:
						return strings.TrimSpace(v)
					case float64:
						return trimFloat(v)
					}
				}
			}
		}
		return ""
	}

	return types.StampRecord{
		ID:           get("id", "stamp_id", "stampId"),
		Name:         get("name", "title"),
		Country:      get("country"),
		IssueYear:    get("issueYear", "issue_year", "year"),
		Denomination: get("denomination", "face_value", "faceValue"),
		Color:        get("color", "colour"),
		Series:       get("series"),
		ImageURL:     get("imageUrl", "image_url", "image"),
	}
}

func trimFloat(v float64) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
