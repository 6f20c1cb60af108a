package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ElicitationAction is the user's decision on an elicitation request.
type ElicitationAction string

// ElicitationAction values.
const (
	ElicitationAccept  ElicitationAction = "accept"
	ElicitationDecline ElicitationAction = "decline"
	ElicitationCancel  ElicitationAction = "cancel"
)

// ElicitationRequest is a pending server-initiated request for user input,
// as exposed to form-rendering consumers.
type ElicitationRequest struct {
	// ID uniquely identifies the request for Submit.
	ID string `json:"id"`
	// ServerID identifies the server that initiated the request.
	ServerID string `json:"serverId"`
	// ServerName is the human-readable name of that server.
	ServerName string `json:"serverName"`
	// Message is the prompt to show the user.
	Message string `json:"message"`
	// RequestedSchema describes the form to collect.
	RequestedSchema *Schema `json:"requestedSchema"`
	// Conformance holds the dialect diagnostics for RequestedSchema. A
	// non-conformant schema is flagged here but still usable.
	Conformance ConformanceResult `json:"conformance"`
}

// ElicitationResponse is the user's answer to an elicitation request.
type ElicitationResponse struct {
	Action  ElicitationAction `json:"action"`
	Content map[string]any    `json:"content,omitempty"`
}

type pendingElicitation struct {
	req     ElicitationRequest
	started time.Time
	respond chan ElicitationResponse
}

// Elicitor coordinates elicitation requests between inspected servers and the
// user. An incoming request is profile-checked (advisory only), captured into
// the message history, and held pending until a response is submitted or the
// request times out. All methods are safe for concurrent use.
type Elicitor struct {
	mu      sync.Mutex
	pending map[string]pendingElicitation

	history *History
	logger  *slog.Logger
	timeout time.Duration
}

// ElicitorOption configures an Elicitor.
type ElicitorOption func(*Elicitor)

// WithElicitorLogger sets the logger used by the elicitor.
func WithElicitorLogger(logger *slog.Logger) ElicitorOption {
	return func(e *Elicitor) {
		e.logger = logger
	}
}

// WithElicitorTimeout sets how long a request waits for a response before
// failing. The default is 5 minutes.
func WithElicitorTimeout(timeout time.Duration) ElicitorOption {
	return func(e *Elicitor) {
		e.timeout = timeout
	}
}

// NewElicitor creates an Elicitor that records traffic into history, which
// may be nil to disable capture.
func NewElicitor(history *History, options ...ElicitorOption) *Elicitor {
	e := &Elicitor{
		pending: make(map[string]pendingElicitation),
		history: history,
		logger:  slog.Default(),
		timeout: 5 * time.Minute,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Request handles a server-initiated elicitation. It checks the requested
// schema against the elicitation dialect, logging any findings without
// blocking the request, registers it as pending for UIs to pick up, and waits
// until a response is submitted, the timeout elapses, or ctx is cancelled.
func (e *Elicitor) Request(ctx context.Context, serverID, serverName string, params ElicitationCreateParams) (ElicitationCreateResult, error) {
	id := uuid.New().String()

	conf := CheckElicitationSchema(params.RequestedSchema)
	if !conf.Valid {
		e.logger.Warn("elicitation schema is not conformant",
			slog.String("server", serverName),
			slog.Int("errors", len(conf.Errors)))
	}
	for _, w := range conf.Warnings {
		e.logger.Debug("elicitation schema advisory",
			slog.String("path", w.Path),
			slog.String("field", w.Field),
			slog.String("issue", w.Error))
	}

	e.capture(serverID, DirectionServerToClient, JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      MustString(id),
		Method:  MethodElicitationCreate,
		Params:  mustMarshal(params),
	}, 0)

	pend := pendingElicitation{
		req: ElicitationRequest{
			ID:              id,
			ServerID:        serverID,
			ServerName:      serverName,
			Message:         params.Message,
			RequestedSchema: params.RequestedSchema,
			Conformance:     conf,
		},
		started: time.Now(),
		respond: make(chan ElicitationResponse, 1),
	}

	e.mu.Lock()
	e.pending[id] = pend
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.pending, id)
		e.mu.Unlock()
	}()

	var resp ElicitationResponse
	select {
	case <-ctx.Done():
		return ElicitationCreateResult{}, ctx.Err()
	case <-time.After(e.timeout):
		return ElicitationCreateResult{}, fmt.Errorf("elicitation request %s timed out after %s", id, e.timeout)
	case resp = <-pend.respond:
	}

	result := ElicitationCreateResult{Action: resp.Action, Content: resp.Content}
	e.capture(serverID, DirectionClientToServer, JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      MustString(id),
		Result:  mustMarshal(result),
	}, time.Since(pend.started))

	return result, nil
}

// Submit delivers the user's answer for the pending request with the given
// ID. Accepting validates the content against the requested schema first and
// refuses submission while the content is invalid; the request stays pending
// so the user can correct the form. Decline and cancel pass through
// untouched.
func (e *Elicitor) Submit(id string, resp ElicitationResponse) error {
	e.mu.Lock()
	pend, ok := e.pending[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending elicitation request %q", id)
	}

	switch resp.Action {
	case ElicitationAccept:
		result := ValidateObject(resp.Content, pend.req.RequestedSchema)
		if !result.IsValid {
			return fmt.Errorf("content does not satisfy the requested schema: %s", summarizeIssues(result.Errors))
		}
	case ElicitationDecline, ElicitationCancel:
	default:
		return fmt.Errorf("invalid elicitation action %q", resp.Action)
	}

	// Re-check under one lock acquisition: the request may have timed out or
	// been answered by a concurrent submission while the content was
	// validated. Only the submission that removes the entry may send.
	e.mu.Lock()
	if _, still := e.pending[id]; !still {
		e.mu.Unlock()
		return fmt.Errorf("no pending elicitation request %q", id)
	}
	delete(e.pending, id)
	e.mu.Unlock()

	pend.respond <- resp

	e.logger.Info("elicitation response submitted",
		slog.String("id", id),
		slog.String("action", string(resp.Action)))
	return nil
}

// Pending returns a snapshot of the outstanding elicitation requests, sorted
// by ID.
func (e *Elicitor) Pending() []ElicitationRequest {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]ElicitationRequest, 0, len(e.pending))
	for _, pend := range e.pending {
		out = append(out, pend.req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Elicitor) capture(serverID string, direction MessageDirection, msg JSONRPCMessage, latency time.Duration) {
	if e.history == nil {
		return
	}
	if latency > 0 {
		e.history.RecordResponse(serverID, direction, msg, latency)
		return
	}
	e.history.Record(serverID, direction, msg)
}

func summarizeIssues(issues []ValidationIssue) string {
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Path, issue.Message))
	}
	return strings.Join(parts, "; ")
}

func mustMarshal(v any) json.RawMessage {
	bs, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return bs
}
