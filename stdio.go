package studio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
)

// StdioTap is a capture-first client session over a child process's
// stdin/stdout (or any io.Reader/io.Writer pair) speaking newline-delimited
// JSON-RPC. Every message that passes through the tap, in either direction,
// is recorded into the message history so the protocol inspector sees the
// full conversation.
//
// Instances must be created with NewStdioTap and released with Close when no
// longer needed.
type StdioTap struct {
	serverID string
	reader   io.Reader
	writer   io.Writer
	history  *History
	logger   *slog.Logger

	writes      chan stdioWrite
	done        chan struct{}
	readClosed  chan struct{}
	writeClosed chan struct{}
}

type stdioWrite struct {
	msg  []byte
	errs chan error
}

// StdioTapOption configures a StdioTap.
type StdioTapOption func(*StdioTap)

// WithStdioTapLogger sets the logger used by the tap.
func WithStdioTapLogger(logger *slog.Logger) StdioTapOption {
	return func(t *StdioTap) {
		t.logger = logger
	}
}

// NewStdioTap creates a tap reading server messages from reader and writing
// client messages to writer, capturing both sides into history. history may
// be nil to disable capture.
func NewStdioTap(serverID string, reader io.Reader, writer io.Writer, history *History, options ...StdioTapOption) *StdioTap {
	t := &StdioTap{
		serverID:    serverID,
		reader:      reader,
		writer:      writer,
		history:     history,
		logger:      slog.Default(),
		writes:      make(chan stdioWrite),
		done:        make(chan struct{}),
		readClosed:  make(chan struct{}),
		writeClosed: make(chan struct{}),
	}
	for _, opt := range options {
		opt(t)
	}

	go t.processWrites()

	return t
}

// Send transmits a message to the server and records it. The provided context
// allows cancellation while the write is queued.
func (t *StdioTap) Send(ctx context.Context, msg JSONRPCMessage) error {
	msgBs, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	// Append newline to maintain message framing protocol
	msgBs = append(msgBs, '\n')

	write := stdioWrite{
		msg:  msgBs,
		errs: make(chan error, 1),
	}

	// Queue the write so concurrent senders never interleave on the writer.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return errors.New("tap is closed")
	case t.writes <- write:
	}

	select {
	case err := <-write.errs:
		if err != nil {
			t.logger.Error("failed to write message", slog.String("err", err.Error()))
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return errors.New("tap is closed")
	}

	if t.history != nil {
		t.history.Record(t.serverID, DirectionClientToServer, msg)
	}
	return nil
}

// Messages returns an iterator over messages received from the server. Each
// message is recorded into the history before it is yielded. The iteration
// ends when the reader is exhausted or the tap is closed.
func (t *StdioTap) Messages() iter.Seq[JSONRPCMessage] {
	return func(yield func(JSONRPCMessage) bool) {
		defer close(t.readClosed)

		// Use bufio.Reader instead of bufio.Scanner to avoid max token size errors.
		reader := bufio.NewReader(t.reader)
		for {
			type lineWithErr struct {
				line string
				err  error
			}

			lines := make(chan lineWithErr, 1)

			// Read on a goroutine so a stalled reader cannot block Close.
			go func() {
				line, err := reader.ReadString('\n')
				if err != nil {
					lines <- lineWithErr{err: err}
					return
				}
				lines <- lineWithErr{line: strings.TrimSuffix(line, "\n")}
			}()

			var lwe lineWithErr
			select {
			case <-t.done:
				return
			case lwe = <-lines:
			}

			if lwe.err != nil {
				if !errors.Is(lwe.err, io.EOF) {
					t.logger.Error("failed to read message", slog.String("err", lwe.err.Error()))
				}
				return
			}

			if lwe.line == "" {
				continue
			}

			var msg JSONRPCMessage
			if err := json.Unmarshal([]byte(lwe.line), &msg); err != nil {
				t.logger.Error("failed to unmarshal message", slog.String("err", err.Error()))
				continue
			}

			if t.history != nil {
				t.history.Record(t.serverID, DirectionServerToClient, msg)
			}

			if !yield(msg) {
				return
			}
		}
	}
}

// Close stops the tap and waits for its write pump to drain. The underlying
// reader and writer are owned by the caller and are not closed.
func (t *StdioTap) Close() {
	close(t.done)
	<-t.writeClosed
}

func (t *StdioTap) processWrites() {
	defer close(t.writeClosed)

	for {
		var write stdioWrite
		select {
		case <-t.done:
			return
		case write = <-t.writes:
		}

		_, err := t.writer.Write(write.msg)
		write.errs <- err
	}
}
