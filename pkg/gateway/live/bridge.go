package live

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Default realtime endpoint. Overridable for tests and proxies.
const DefaultUpstreamURL = "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview"

const (
	defaultPingInterval       = 20 * time.Second
	defaultWriteTimeout       = 5 * time.Second
	defaultMaxSessionDuration = 30 * time.Minute
	defaultHandshakeTimeout   = 10 * time.Second
)

// Bridge relays websocket frames between one client connection and the
// provider realtime endpoint. It carries no audio understanding of its own:
// the only state is connected, queued while the upstream dial is in flight,
// then forwarding until either side closes.
type Bridge struct {
	UpstreamURL string
	APIKey      string
	Logger      *slog.Logger

	PingInterval       time.Duration
	WriteTimeout       time.Duration
	MaxSessionDuration time.Duration
	MaxFrameBytes      int64

	// Dialer overrides the upstream dialer. Nil uses a dialer with the
	// default handshake timeout.
	Dialer *websocket.Dialer
}

type statusFrame struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	SessionID string `json:"sessionId,omitempty"`
}

func (b *Bridge) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func (b *Bridge) pingInterval() time.Duration {
	if b.PingInterval > 0 {
		return b.PingInterval
	}
	return defaultPingInterval
}

func (b *Bridge) writeTimeout() time.Duration {
	if b.WriteTimeout > 0 {
		return b.WriteTimeout
	}
	return defaultWriteTimeout
}

func (b *Bridge) maxSessionDuration() time.Duration {
	if b.MaxSessionDuration > 0 {
		return b.MaxSessionDuration
	}
	return defaultMaxSessionDuration
}

func (b *Bridge) upstreamURL() string {
	if b.UpstreamURL != "" {
		return b.UpstreamURL
	}
	return DefaultUpstreamURL
}

// Run bridges client to the upstream realtime endpoint until either side
// closes, ctx is canceled, or the session duration cap is hit. The client
// connection is closed before Run returns.
func (b *Bridge) Run(ctx context.Context, client *websocket.Conn, sessionID string) error {
	defer client.Close()

	if b.MaxFrameBytes > 0 {
		client.SetReadLimit(b.MaxFrameBytes)
	}

	if err := b.sendStatus(client, "connected", sessionID); err != nil {
		return err
	}
	if err := b.sendStatus(client, "queued", sessionID); err != nil {
		return err
	}

	upstream, err := b.dialUpstream(ctx)
	if err != nil {
		b.logger().Error("realtime upstream dial failed", "session_id", sessionID, "error", err)
		b.writeClose(client, websocket.CloseInternalServerErr, "upstream unavailable")
		return err
	}
	defer upstream.Close()

	if b.MaxFrameBytes > 0 {
		upstream.SetReadLimit(b.MaxFrameBytes)
	}

	if err := b.sendStatus(client, "forwarding", sessionID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, b.maxSessionDuration())
	defer cancel()

	errc := make(chan error, 2)
	go func() { errc <- b.pump(upstream, client) }()
	go func() { errc <- b.pump(client, upstream) }()

	pingTicker := time.NewTicker(b.pingInterval())
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.writeClose(client, websocket.CloseNormalClosure, "session ended")
			b.writeClose(upstream, websocket.CloseNormalClosure, "session ended")
			return nil
		case <-pingTicker.C:
			deadline := time.Now().Add(b.writeTimeout())
			if err := client.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				b.writeClose(upstream, websocket.CloseGoingAway, "client gone")
				return nil
			}
		case err := <-errc:
			// First pump to stop ends the session; a normal close from
			// either peer is not an error.
			b.writeClose(client, websocket.CloseNormalClosure, "session ended")
			b.writeClose(upstream, websocket.CloseNormalClosure, "session ended")
			if isExpectedClose(err) {
				return nil
			}
			return err
		}
	}
}

func (b *Bridge) dialUpstream(ctx context.Context) (*websocket.Conn, error) {
	dialer := b.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	}

	headers := http.Header{}
	if b.APIKey != "" {
		headers.Set("Authorization", "Bearer "+b.APIKey)
		headers.Set("OpenAI-Beta", "realtime=v1")
	}

	conn, resp, err := dialer.DialContext(ctx, b.upstreamURL(), headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return nil, fmt.Errorf("realtime connect (status %d): %s", resp.StatusCode, string(body))
			}
			return nil, fmt.Errorf("realtime connect: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime connect: %w", err)
	}
	return conn, nil
}

// pump copies frames from src to dst preserving the message type.
func (b *Bridge) pump(src, dst *websocket.Conn) error {
	for {
		messageType, data, err := src.ReadMessage()
		if err != nil {
			return err
		}
		if err := dst.SetWriteDeadline(time.Now().Add(b.writeTimeout())); err != nil {
			return err
		}
		if err := dst.WriteMessage(messageType, data); err != nil {
			return err
		}
	}
}

func (b *Bridge) sendStatus(conn *websocket.Conn, status, sessionID string) error {
	payload, err := json.Marshal(statusFrame{Type: "status", Status: status, SessionID: sessionID})
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(b.writeTimeout())); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (b *Bridge) writeClose(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(b.writeTimeout())
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

func isExpectedClose(err error) bool {
	if err == nil {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}
