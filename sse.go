package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tmaxmax/go-sse"
)

// SSETap is a capture-first client session over the protocol's Server-Sent
// Events transport. Server-to-client messages arrive on the SSE stream after
// an initial "endpoint" event announces the POST URL for client-to-server
// messages. Every message in either direction is recorded into the message
// history.
//
// Instances must be created with NewSSETap and connected with Connect before
// use.
type SSETap struct {
	serverID   string
	httpClient *http.Client
	connectURL string
	messageURL string
	history    *History
	logger     *slog.Logger

	maxPayloadSize int

	messages chan JSONRPCMessage
}

// SSETapOption configures an SSETap.
type SSETapOption func(*SSETap)

// WithSSETapLogger sets the logger used by the tap.
func WithSSETapLogger(logger *slog.Logger) SSETapOption {
	return func(t *SSETap) {
		t.logger = logger
	}
}

// WithSSETapMaxPayloadSize sets the maximum size of an event payload accepted
// from the server. Oversized payloads end the stream.
func WithSSETapMaxPayloadSize(size int) SSETapOption {
	return func(t *SSETap) {
		t.maxPayloadSize = size
	}
}

// NewSSETap creates a tap that connects to connectURL and captures traffic
// into history. The optional httpClient parameter allows custom HTTP client
// configuration - if nil, the default HTTP client is used. history may be nil
// to disable capture.
func NewSSETap(serverID, connectURL string, httpClient *http.Client, history *History, options ...SSETapOption) *SSETap {
	cli := httpClient
	if cli == nil {
		cli = http.DefaultClient
	}
	t := &SSETap{
		serverID:   serverID,
		httpClient: cli,
		connectURL: connectURL,
		history:    history,
		logger:     slog.Default(),
		messages:   make(chan JSONRPCMessage),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Connect establishes the SSE stream and blocks until the server announces
// the message endpoint or the context is cancelled. After a successful
// Connect the tap's Messages iterator yields server messages until the stream
// ends.
func (t *SSETap) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.connectURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE server: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	ready := make(chan error, 1)
	go t.listen(resp.Body, ready)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, open := <-ready:
		// The listener closes ready on success and feeds it on failure.
		if open && err != nil {
			return err
		}
	}
	return nil
}

// Send transmits a message to the server through an HTTP POST request and
// records it. Returns an error if the tap is not connected yet, the request
// cannot be made, or the server responds with a non-200 status code.
func (t *SSETap) Send(ctx context.Context, msg JSONRPCMessage) error {
	if t.messageURL == "" {
		return errors.New("tap is not connected")
	}

	msgBs, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.messageURL, bytes.NewReader(msgBs))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if t.history != nil {
		t.history.Record(t.serverID, DirectionClientToServer, msg)
	}
	return nil
}

// Messages returns an iterator over messages received from the server. Each
// message is recorded into the history before it is yielded. The iteration
// ends when the SSE stream closes.
func (t *SSETap) Messages() iter.Seq[JSONRPCMessage] {
	return func(yield func(JSONRPCMessage) bool) {
		for msg := range t.messages {
			if !yield(msg) {
				return
			}
		}
	}
}

func (t *SSETap) listen(body io.ReadCloser, ready chan<- error) {
	defer func() {
		body.Close()
		close(t.messages)
	}()

	var config *sse.ReadConfig
	if t.maxPayloadSize > 0 {
		config = &sse.ReadConfig{
			MaxEventSize: t.maxPayloadSize,
		}
	}

	for ev, err := range sse.Read(body, config) {
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				t.logger.Error("failed to read SSE message", slog.String("err", err.Error()))
			}
			return
		}

		switch ev.Type {
		case "endpoint":
			if t.messageURL != "" {
				// ready is already closed; a repeated announcement is a server
				// bug, not a reason to tear down the stream.
				t.logger.Error("received duplicate endpoint event", slog.String("data", ev.Data))
				continue
			}
			// The endpoint URL routes every outbound message; refuse the
			// session rather than guess when it is unusable.
			u, err := url.Parse(ev.Data)
			if err != nil {
				ready <- fmt.Errorf("parse endpoint URL: %w", err)
				return
			}
			if u.String() == "" {
				ready <- errors.New("empty endpoint URL")
				return
			}
			t.messageURL = u.String()
			close(ready)
		case "message":
			if t.messageURL == "" {
				// No messages before the endpoint announcement; the session
				// is not established yet.
				t.logger.Error("received message before endpoint URL")
				continue
			}

			var msg JSONRPCMessage
			if err := json.Unmarshal([]byte(ev.Data), &msg); err != nil {
				t.logger.Error("failed to unmarshal message", slog.String("err", err.Error()))
				continue
			}

			if t.history != nil {
				t.history.Record(t.serverID, DirectionServerToClient, msg)
			}

			t.messages <- msg
		default:
			t.logger.Error("unhandled event type", slog.String("type", string(ev.Type)))
		}
	}
}
