package types

// StreamEvent is implemented by every frame relayed to the client during a
// streaming turn. Frames are serialized as `data: {json}\n\n` with the type
// carried inside the payload.
type StreamEvent interface {
	EventType() string
}

// StatusEvent reports run progress on each poll.
type StatusEvent struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

func (e StatusEvent) EventType() string { return "status" }

// KeepAliveEvent defeats idle-connection timeouts on the transport.
type KeepAliveEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func (e KeepAliveEvent) EventType() string { return "keep-alive" }

// StampPreviewEvent carries validated records as soon as they pass
// validation, before the tool-output round trip completes.
type StampPreviewEvent struct {
	Type string        `json:"type"`
	Data []StampRecord `json:"data"`
}

func (e StampPreviewEvent) EventType() string { return "stamp_preview" }

// RawStampDataEvent mirrors the preview with the unshaped record list.
type RawStampDataEvent struct {
	Type string        `json:"type"`
	Data []StampRecord `json:"data"`
}

func (e RawStampDataEvent) EventType() string { return "raw_stamp_data" }

// StructuredDataEvent carries the final card or carousel.
type StructuredDataEvent struct {
	Type string        `json:"type"`
	Data *Presentation `json:"data"`
}

func (e StructuredDataEvent) EventType() string { return "structured_data" }

// ContentEvent is one cosmetic word-group chunk of the final text.
type ContentEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (e ContentEvent) EventType() string { return "content" }

// CompleteResponseEvent carries the whole final text, sent before chunked
// re-streaming so an interrupted chunk phase still leaves the client with
// the full text.
type CompleteResponseEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (e CompleteResponseEvent) EventType() string { return "complete_response" }

// CompleteEvent terminates the turn.
type CompleteEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

func (e CompleteEvent) EventType() string { return "complete" }

// ErrorEvent is the terminal frame for a failed turn.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (e ErrorEvent) EventType() string { return "error" }

// TimeoutEvent is the terminal frame when the deadline guard fires.
type TimeoutEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e TimeoutEvent) EventType() string { return "timeout" }
