package studio

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// MessageDirection indicates which way a captured message traveled.
type MessageDirection string

// MessageDirection values.
const (
	DirectionClientToServer MessageDirection = "client_to_server"
	DirectionServerToClient MessageDirection = "server_to_client"
)

// MessageRecord is one captured protocol message. Records are immutable once
// stored; the inspector UI keys its presentation state off ID.
type MessageRecord struct {
	// ID uniquely identifies the record.
	ID uuid.UUID `json:"id"`
	// ServerID identifies the inspected server the message belongs to.
	ServerID string `json:"serverId"`
	// Timestamp is when the message was captured.
	Timestamp time.Time `json:"timestamp"`
	// Direction indicates whether the message was sent or received.
	Direction MessageDirection `json:"direction"`
	// Method is the JSON-RPC method, empty for responses.
	Method string `json:"method,omitempty"`
	// Content is the full serialized message.
	Content json.RawMessage `json:"content"`
	// SizeBytes is the serialized size of the message.
	SizeBytes int `json:"sizeBytes"`
	// ProcessingTime is the request-to-response latency when known.
	ProcessingTime time.Duration `json:"processingTime,omitempty"`
}

// HistoryStats summarizes the captured traffic for a dashboard view.
type HistoryStats struct {
	TotalMessages    int `json:"totalMessages"`
	SentMessages     int `json:"sentMessages"`
	ReceivedMessages int `json:"receivedMessages"`
	TotalBytes       int `json:"totalBytes"`
}

// Filter selects a subset of captured messages. Zero fields match everything.
type Filter struct {
	// ServerID restricts records to one inspected server.
	ServerID string
	// Direction restricts records to one direction.
	Direction MessageDirection
	// MethodPattern is a glob matched against the record's method, for
	// example "notifications/*". An empty pattern matches every record,
	// including responses without a method.
	MethodPattern string
}

// History is a bounded in-memory capture of protocol traffic, the backing
// store of the protocol inspector. Once the limit is reached the oldest
// records are dropped. All methods are safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	records []MessageRecord
	limit   int
	logger  *slog.Logger
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithHistoryLogger sets the logger used by the history.
func WithHistoryLogger(logger *slog.Logger) HistoryOption {
	return func(h *History) {
		h.logger = logger
	}
}

// NewHistory creates a message history retaining at most limit records. A
// non-positive limit falls back to the default of 1000.
func NewHistory(limit int, options ...HistoryOption) *History {
	if limit <= 0 {
		limit = 1000
	}
	h := &History{
		limit:  limit,
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// Record captures one message and returns the stored record. The message is
// serialized at capture time so later mutations of msg cannot alter history.
func (h *History) Record(serverID string, direction MessageDirection, msg JSONRPCMessage) MessageRecord {
	return h.record(serverID, direction, msg, 0)
}

// RecordResponse captures a response message along with the latency measured
// from its originating request.
func (h *History) RecordResponse(serverID string, direction MessageDirection, msg JSONRPCMessage, latency time.Duration) MessageRecord {
	return h.record(serverID, direction, msg, latency)
}

func (h *History) record(serverID string, direction MessageDirection, msg JSONRPCMessage, latency time.Duration) MessageRecord {
	content, err := json.Marshal(msg)
	if err != nil {
		// Nothing a caller can do with a marshal failure here; keep a stub
		// record so the traffic count stays honest.
		h.logger.Error("failed to serialize message for capture", slog.String("err", err.Error()))
		content = []byte("{}")
	}

	rec := MessageRecord{
		ID:             uuid.New(),
		ServerID:       serverID,
		Timestamp:      time.Now().UTC(),
		Direction:      direction,
		Method:         msg.Method,
		Content:        content,
		SizeBytes:      len(content),
		ProcessingTime: latency,
	}

	h.mu.Lock()
	h.records = append(h.records, rec)
	if len(h.records) > h.limit {
		h.records = h.records[len(h.records)-h.limit:]
	}
	h.mu.Unlock()

	return rec
}

// Messages returns the captured records matching filter, oldest first.
func (h *History) Messages(filter Filter) ([]MessageRecord, error) {
	var methodGlob glob.Glob
	if filter.MethodPattern != "" {
		var err error
		methodGlob, err = glob.Compile(filter.MethodPattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid method pattern %q: %w", filter.MethodPattern, err)
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []MessageRecord
	for _, rec := range h.records {
		if filter.ServerID != "" && rec.ServerID != filter.ServerID {
			continue
		}
		if filter.Direction != "" && rec.Direction != filter.Direction {
			continue
		}
		if methodGlob != nil && !methodGlob.Match(rec.Method) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Stats summarizes the currently retained records.
func (h *History) Stats() HistoryStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := HistoryStats{TotalMessages: len(h.records)}
	for _, rec := range h.records {
		stats.TotalBytes += rec.SizeBytes
		switch rec.Direction {
		case DirectionClientToServer:
			stats.SentMessages++
		case DirectionServerToClient:
			stats.ReceivedMessages++
		}
	}
	return stats
}

// DiffRecords renders a line-oriented diff between the payloads of two
// captured messages, for the inspector's compare view. Both payloads are
// pretty-printed first so the diff follows structure rather than raw bytes.
func DiffRecords(a, b MessageRecord) string {
	dmp := diffmatchpatch.New()
	left := prettyJSON(a.Content)
	right := prettyJSON(b.Content)

	chars1, chars2, lines := dmp.DiffLinesToChars(left, right)
	diffs := dmp.DiffMain(chars1, chars2, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)
	return dmp.DiffPrettyText(diffs)
}

func prettyJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	bs, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(bs)
}
