package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFrom_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	ctx := WithCorrelation(context.Background(), Correlation{RunID: "run-1", Scenario: "Menu"})
	ctx = WithCorrelation(ctx, Correlation{Step: "3"})
	From(ctx).Info("step finished")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	for key, want := range map[string]string{"run_id": "run-1", "scenario": "Menu", "step": "3"} {
		if got, _ := entry[key].(string); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if _, ok := entry["session_id"]; ok {
		t.Error("empty correlation fields should be omitted")
	}
	ts, _ := entry["time"].(string)
	if _, err := time.Parse(time.RFC3339Nano, ts); err != nil || !strings.HasSuffix(ts, "Z") {
		t.Errorf("time should be UTC RFC3339Nano, got %q", ts)
	}
}

func TestCorrelationFromContext_NilAndEmpty(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	if got := CorrelationFromContext(nil); got != (Correlation{}) {
		t.Fatalf("nil ctx: got %+v", got)
	}
	if got := CorrelationFromContext(context.Background()); got != (Correlation{}) {
		t.Fatalf("empty ctx: got %+v", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMetrics_CountsAndTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveScenario("passed", 2*time.Second)
	m.ObserveScenario("passed", time.Second)
	m.ObserveScenario("failed", time.Second)
	m.ObserveStep("assert")
	m.ObserveAssertion(4, false)
	m.ObserveAssertion(6, true)

	if got := testutil.ToFloat64(m.scenarios.WithLabelValues("passed")); got != 2 {
		t.Errorf("passed scenarios = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.assertAttempts); got != 10 {
		t.Errorf("attempts = %v, want 10", got)
	}
	if got := testutil.ToFloat64(m.assertTimeouts); got != 1 {
		t.Errorf("timeouts = %v, want 1", got)
	}

	path := filepath.Join(t.TempDir(), "uicheck.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `uicheck_scenarios_total{status="failed"} 1`) {
		t.Fatalf("textfile missing scenario counter:\n%s", raw)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveScenario("passed", time.Second)
	m.ObserveStep("wait")
	m.ObserveAssertion(1, true)
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x")); err != nil {
		t.Fatalf("nil metrics WriteTextfile: %v", err)
	}
}
