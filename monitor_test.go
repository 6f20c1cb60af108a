package studio_test

import (
	"context"
	"errors"
	"testing"
	"time"

	studio "github.com/Epistates/turbomcpstudio-sub004"
)

func waitForReport(t *testing.T, m *studio.Monitor, cond func(studio.HealthReport) bool) studio.HealthReport {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if report := m.Report(); cond(report) {
			return report
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for health report, last: %+v", m.Report())
	return studio.HealthReport{}
}

func TestMonitorHealthyWhenPingsAnswered(t *testing.T) {
	// Echo transport: answer every ping immediately. The monitor variable is
	// assigned before Run starts, so the closure sees it.
	var monitor *studio.Monitor
	send := func(_ context.Context, msg studio.JSONRPCMessage) error {
		monitor.Observe(studio.JSONRPCMessage{
			JSONRPC: studio.JSONRPCVersion,
			ID:      msg.ID,
			Result:  []byte(`{}`),
		})
		return nil
	}
	monitor = studio.NewMonitor("srv-1", send, studio.WithMonitorInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)

	report := waitForReport(t, monitor, func(r studio.HealthReport) bool {
		return r.PingsSent >= 2
	})
	if report.State != studio.HealthHealthy {
		t.Errorf("got state %q, want healthy", report.State)
	}
	if report.PingsFailed != 0 {
		t.Errorf("got %d failed pings, want 0", report.PingsFailed)
	}
	if report.LastChecked.IsZero() {
		t.Error("LastChecked never updated")
	}
}

func TestMonitorDegradesThenUnreachable(t *testing.T) {
	send := func(context.Context, studio.JSONRPCMessage) error {
		return errors.New("broken pipe")
	}

	monitor := studio.NewMonitor("srv-1", send,
		studio.WithMonitorInterval(10*time.Millisecond),
		studio.WithMonitorFailureThreshold(3))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)

	report := waitForReport(t, monitor, func(r studio.HealthReport) bool {
		return r.ConsecutiveFailures >= 1
	})
	if report.ConsecutiveFailures < 3 && report.State != studio.HealthDegraded {
		t.Errorf("got state %q after %d failures, want degraded", report.State, report.ConsecutiveFailures)
	}

	report = waitForReport(t, monitor, func(r studio.HealthReport) bool {
		return r.ConsecutiveFailures >= 3
	})
	if report.State != studio.HealthUnreachable {
		t.Errorf("got state %q, want unreachable", report.State)
	}
}

func TestMonitorIgnoresStrayResponses(t *testing.T) {
	monitor := studio.NewMonitor("srv-1", func(context.Context, studio.JSONRPCMessage) error {
		return errors.New("broken pipe")
	}, studio.WithMonitorInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	go monitor.Run(ctx)

	waitForReport(t, monitor, func(r studio.HealthReport) bool {
		return r.State == studio.HealthUnreachable
	})
	cancel()

	// A response that answers no outstanding ping must not reset the state.
	monitor.Observe(studio.JSONRPCMessage{
		JSONRPC: studio.JSONRPCVersion,
		ID:      "unknown",
		Result:  []byte(`{}`),
	})
	if report := monitor.Report(); report.State != studio.HealthUnreachable {
		t.Errorf("stray response changed state to %q", report.State)
	}
}

func TestMonitorObserveIgnoresRequests(t *testing.T) {
	monitor := studio.NewMonitor("srv-1", func(context.Context, studio.JSONRPCMessage) error {
		return nil
	})

	// A request (no result, no error) from the server must not touch state.
	monitor.Observe(studio.JSONRPCMessage{
		JSONRPC: studio.JSONRPCVersion,
		ID:      "9",
		Method:  "notifications/progress",
	})
	if report := monitor.Report(); !report.LastChecked.IsZero() {
		t.Errorf("request message updated the report: %+v", report)
	}
}
