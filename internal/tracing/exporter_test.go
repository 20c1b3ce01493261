package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func stubSpan(name string, code codes.Code) sdktrace.ReadOnlySpan {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return tracetest.SpanStub{
		Name: name,
		SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{1},
			SpanID:  trace.SpanID{2},
		}),
		StartTime:  start,
		EndTime:    start.Add(1500 * time.Microsecond),
		Status:     sdktrace.Status{Code: code, Description: "why"},
		Attributes: []attribute.KeyValue{attribute.String(AttrOperationLabel, "rename")},
		Events:     []sdktrace.Event{{Name: EventPhaseUpdates}},
	}.Snapshot()
}

func readRecords(t *testing.T, path string) []SpanRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []SpanRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec SpanRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestFileExporter_WritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)

	err = exp.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{
		stubSpan(SpanCommit, codes.Ok),
		stubSpan(SpanUndo, codes.Error),
	})
	require.NoError(t, err)
	require.NoError(t, exp.Shutdown(context.Background()))

	recs := readRecords(t, path)
	require.Len(t, recs, 2)
	require.Equal(t, SpanCommit, recs[0].Name)
	require.Equal(t, "OK", recs[0].Status)
	require.Equal(t, 1.5, recs[0].DurationMs)
	require.Equal(t, "rename", recs[0].Attributes[AttrOperationLabel])
	require.Equal(t, []string{EventPhaseUpdates}, recs[0].Events)
	require.Equal(t, "ERROR", recs[1].Status)
	require.Equal(t, "why", recs[1].StatusMsg)
}

func TestFileExporter_EmptyBatchAndShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)

	require.NoError(t, exp.ExportSpans(context.Background(), nil))
	require.NoError(t, exp.Shutdown(context.Background()))
	require.NoError(t, exp.Shutdown(context.Background()))

	err = exp.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stubSpan("late", codes.Unset)})
	require.Error(t, err)
}
