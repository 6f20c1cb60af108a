package studio_test

import (
	"context"
	"strings"
	"testing"
	"time"

	studio "github.com/Epistates/turbomcpstudio-sub004"
)

func contactSchema() *studio.Schema {
	return &studio.Schema{
		Type: "object",
		Properties: map[string]*studio.Schema{
			"email": {Type: "string", Format: "email", Title: "Email"},
		},
		Required: []string{"email"},
	}
}

func waitForPending(t *testing.T, e *studio.Elicitor) studio.ElicitationRequest {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pending := e.Pending(); len(pending) > 0 {
			return pending[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timeout waiting for pending elicitation request")
	return studio.ElicitationRequest{}
}

func TestElicitorAcceptFlow(t *testing.T) {
	history := studio.NewHistory(10)
	elicitor := studio.NewElicitor(history)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := make(chan studio.ElicitationCreateResult, 1)
	errs := make(chan error, 1)
	go func() {
		result, err := elicitor.Request(ctx, "srv-1", "test server", studio.ElicitationCreateParams{
			Message:         "Enter your contact details",
			RequestedSchema: contactSchema(),
		})
		results <- result
		errs <- err
	}()

	req := waitForPending(t, elicitor)
	if req.ServerName != "test server" {
		t.Errorf("got server name %q, want %q", req.ServerName, "test server")
	}
	if !req.Conformance.Valid {
		t.Errorf("conformant schema flagged: %v", req.Conformance.Errors)
	}

	// Invalid content is refused and the request stays pending.
	err := elicitor.Submit(req.ID, studio.ElicitationResponse{
		Action:  studio.ElicitationAccept,
		Content: map[string]any{"email": "not-an-email"},
	})
	if err == nil {
		t.Fatal("Submit() accepted invalid content")
	}
	if !strings.Contains(err.Error(), "email") {
		t.Errorf("error %q does not name the failing field", err)
	}
	if len(elicitor.Pending()) != 1 {
		t.Fatal("request no longer pending after refused submission")
	}

	// Valid content resolves the request.
	if err := elicitor.Submit(req.ID, studio.ElicitationResponse{
		Action:  studio.ElicitationAccept,
		Content: map[string]any{"email": "user@example.com"},
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	result := <-results
	if err := <-errs; err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if result.Action != studio.ElicitationAccept {
		t.Errorf("got action %q, want accept", result.Action)
	}
	if result.Content["email"] != "user@example.com" {
		t.Errorf("got content %v, want submitted email", result.Content)
	}
	if len(elicitor.Pending()) != 0 {
		t.Error("request still pending after resolution")
	}

	// Both the request and the response were captured.
	records, err := history.Messages(studio.Filter{ServerID: "srv-1"})
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d captured records, want 2", len(records))
	}
	if records[0].Method != studio.MethodElicitationCreate {
		t.Errorf("got first method %q, want %q", records[0].Method, studio.MethodElicitationCreate)
	}
	if records[1].ProcessingTime <= 0 {
		t.Error("response record has no processing time")
	}
}

func TestElicitorDeclineSkipsValidation(t *testing.T) {
	elicitor := studio.NewElicitor(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := make(chan studio.ElicitationCreateResult, 1)
	go func() {
		result, _ := elicitor.Request(ctx, "srv-1", "test server", studio.ElicitationCreateParams{
			Message:         "Enter your contact details",
			RequestedSchema: contactSchema(),
		})
		results <- result
	}()

	req := waitForPending(t, elicitor)
	if err := elicitor.Submit(req.ID, studio.ElicitationResponse{Action: studio.ElicitationDecline}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if result := <-results; result.Action != studio.ElicitationDecline {
		t.Errorf("got action %q, want decline", result.Action)
	}
}

func TestElicitorNonConformantSchemaStillServed(t *testing.T) {
	// The permissive posture: a schema outside the dialect is flagged on the
	// pending request but the elicitation proceeds anyway.
	elicitor := studio.NewElicitor(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		_, _ = elicitor.Request(ctx, "srv-1", "test server", studio.ElicitationCreateParams{
			Message: "pick tags",
			RequestedSchema: &studio.Schema{
				Type:       "object",
				Properties: map[string]*studio.Schema{"tags": {Type: "array"}},
			},
		})
	}()

	req := waitForPending(t, elicitor)
	if req.Conformance.Valid {
		t.Error("non-conformant schema not flagged on the pending request")
	}
	if err := elicitor.Submit(req.ID, studio.ElicitationResponse{Action: studio.ElicitationCancel}); err != nil {
		t.Errorf("Submit() error = %v, want cancel to pass through", err)
	}
}

func TestElicitorSubmitErrors(t *testing.T) {
	elicitor := studio.NewElicitor(nil)

	if err := elicitor.Submit("ghost", studio.ElicitationResponse{Action: studio.ElicitationDecline}); err == nil {
		t.Error("Submit() for unknown request did not error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		_, _ = elicitor.Request(ctx, "srv-1", "test server", studio.ElicitationCreateParams{
			Message:         "details",
			RequestedSchema: contactSchema(),
		})
	}()

	req := waitForPending(t, elicitor)
	if err := elicitor.Submit(req.ID, studio.ElicitationResponse{Action: "shrug"}); err == nil {
		t.Error("Submit() with invalid action did not error")
	}
}

func TestElicitorTimeout(t *testing.T) {
	elicitor := studio.NewElicitor(nil, studio.WithElicitorTimeout(30*time.Millisecond))

	_, err := elicitor.Request(context.Background(), "srv-1", "test server", studio.ElicitationCreateParams{
		Message:         "details",
		RequestedSchema: contactSchema(),
	})
	if err == nil {
		t.Fatal("Request() did not time out")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error %q does not mention the timeout", err)
	}
	if len(elicitor.Pending()) != 0 {
		t.Error("timed-out request still pending")
	}
}

func TestElicitorSubmitAfterTimeout(t *testing.T) {
	elicitor := studio.NewElicitor(nil, studio.WithElicitorTimeout(30*time.Millisecond))

	errs := make(chan error, 1)
	go func() {
		_, err := elicitor.Request(context.Background(), "srv-1", "test server", studio.ElicitationCreateParams{
			Message:         "details",
			RequestedSchema: contactSchema(),
		})
		errs <- err
	}()

	req := waitForPending(t, elicitor)
	if err := <-errs; err == nil {
		t.Fatal("Request() did not time out")
	}

	// The window between lookup and delivery is closed: a submission landing
	// after the timeout must report failure, not pretend it was delivered.
	err := elicitor.Submit(req.ID, studio.ElicitationResponse{
		Action:  studio.ElicitationAccept,
		Content: map[string]any{"email": "user@example.com"},
	})
	if err == nil {
		t.Error("Submit() after timeout reported success")
	}
}

func TestElicitorConcurrentSubmits(t *testing.T) {
	elicitor := studio.NewElicitor(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		_, _ = elicitor.Request(ctx, "srv-1", "test server", studio.ElicitationCreateParams{
			Message:         "details",
			RequestedSchema: contactSchema(),
		})
	}()

	req := waitForPending(t, elicitor)

	const submitters = 8
	errs := make(chan error, submitters)
	for range submitters {
		go func() {
			errs <- elicitor.Submit(req.ID, studio.ElicitationResponse{Action: studio.ElicitationDecline})
		}()
	}

	delivered := 0
	for range submitters {
		if err := <-errs; err == nil {
			delivered++
		}
	}
	if delivered != 1 {
		t.Errorf("%d submissions reported success, want exactly 1", delivered)
	}
}

func TestElicitorContextCancellation(t *testing.T) {
	elicitor := studio.NewElicitor(nil)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := elicitor.Request(ctx, "srv-1", "test server", studio.ElicitationCreateParams{
			Message:         "details",
			RequestedSchema: contactSchema(),
		})
		errs <- err
	}()

	waitForPending(t, elicitor)
	cancel()

	select {
	case err := <-errs:
		if err == nil {
			t.Error("Request() returned nil after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for cancelled request to return")
	}
}
