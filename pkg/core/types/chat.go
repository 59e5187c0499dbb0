package types

import (
	"strings"
	"time"

	"github.com/stampchat/stampchat/pkg/core"
)

func errMissing(param string) error {
	return core.NewValidationErrorWithParam(param+" is required", param)
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message             string        `json:"message"`
	SessionID           string        `json:"sessionId"`
	Stream              bool          `json:"stream,omitempty"`
	VoiceChat           bool          `json:"voiceChat,omitempty"`
	ConversationHistory []HistoryItem `json:"conversationHistory,omitempty"`
}

// HistoryItem is one prior turn supplied by the client. Only used by the
// voice-chat single-shot path; the assistant path carries history server-side.
type HistoryItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Validate checks the request shape.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return errMissing("message")
	}
	if strings.TrimSpace(r.SessionID) == "" {
		return errMissing("sessionId")
	}
	return nil
}

// ChatResponse is the non-streaming body of POST /v1/chat.
type ChatResponse struct {
	Response       string        `json:"response"`
	StructuredData *Presentation `json:"structuredData,omitempty"`
	FoundStamps    int           `json:"foundStamps"`
	SessionID      string        `json:"sessionId"`
}

// StampRecord is one philatelic catalog item as carried through tool calls,
// presentations and referent memory.
type StampRecord struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	Country      string `json:"country,omitempty"`
	IssueYear    string `json:"issueYear,omitempty"`
	Denomination string `json:"denomination,omitempty"`
	Color        string `json:"color,omitempty"`
	Series       string `json:"series,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
}

// Identified reports whether the record carries at least one identifying
// field. An id-only stub is never identified; a card must not be fabricated
// from one.
func (s StampRecord) Identified() bool {
	return strings.TrimSpace(s.Name) != "" ||
		strings.TrimSpace(s.Country) != "" ||
		strings.TrimSpace(s.IssueYear) != ""
}

// StampContext is one remembered stamp for pronoun-style follow-ups in the
// voice variant ("compare it with...").
type StampContext struct {
	Record StampRecord `json:"record"`
	SeenAt time.Time   `json:"seenAt"`
}

// NormalizeMessage canonicalizes a user message for dedup keying.
func NormalizeMessage(message string) string {
	return strings.ToLower(strings.TrimSpace(message))
}
