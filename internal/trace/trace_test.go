package trace

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestGenerateTraceID(t *testing.T) {
	id := generateTraceID()
	if len(id) != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", len(id))
	}
}

func TestGenerateSpanID(t *testing.T) {
	id := generateSpanID()
	if len(id) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(id))
	}
}

func TestIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateTraceID()
		if seen[id] {
			t.Error("generated duplicate trace ID")
		}
		seen[id] = true
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child should have new span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent should be parent's span ID")
	}
}

func TestContextPropagation(t *testing.T) {
	tc := New()
	ctx := WithContext(context.Background(), tc)

	extracted, ok := FromContext(ctx)
	if !ok {
		t.Fatal("should extract trace context")
	}
	if extracted.TraceID != tc.TraceID {
		t.Error("extracted trace ID mismatch")
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Error("should not find trace context in empty context")
	}
}

func TestEnsureContext(t *testing.T) {
	ctx, tc := EnsureContext(context.Background())
	if len(tc.TraceID) != 32 {
		t.Error("should create trace ID")
	}

	_, tc2 := EnsureContext(ctx)
	if tc2.TraceID != tc.TraceID {
		t.Error("should return existing trace")
	}
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()
	_, span := StartSpan(ctx, "pipeline.analyze")

	if span.Name != "pipeline.analyze" {
		t.Error("span name mismatch")
	}

	span.SetAttr("grid_size", 4)
	if d := span.End(); d <= 0 {
		t.Error("End should return positive duration")
	}
	if span.Duration() != span.End() {
		t.Error("repeated End should return first measurement")
	}
}

func TestSpanNested(t *testing.T) {
	ctx := context.Background()
	ctx, parent := StartSpan(ctx, "pipeline.frame")
	_, child := StartSpan(ctx, "classify.faces")

	if child.Ctx.TraceID != parent.Ctx.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.Ctx.ParentSpanID != parent.Ctx.SpanID {
		t.Error("child's parent should be parent's span")
	}
}

func TestExtractFromJSON(t *testing.T) {
	tc, found := ExtractFromJSON([]byte(`{"type":"pressure","trace_id":"abc123"}`))
	if !found {
		t.Fatal("should find trace_id")
	}
	if tc.TraceID != "abc123" {
		t.Errorf("TraceID = %q, want %q", tc.TraceID, "abc123")
	}

	if _, found := ExtractFromJSON([]byte(`{"type":"force"}`)); found {
		t.Error("should not find trace_id when absent")
	}
}

func TestUnaryClientInterceptorInjects(t *testing.T) {
	tc := New()
	ctx := WithContext(context.Background(), tc)

	var got metadata.MD
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		got, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}

	if err := UnaryClientInterceptor()(ctx, "/classifier/DetectFaces", nil, nil, nil, invoker); err != nil {
		t.Fatalf("interceptor error: %v", err)
	}

	if v := got.Get(TraceIDKey); len(v) != 1 || v[0] != tc.TraceID {
		t.Errorf("metadata trace id = %v, want %q", v, tc.TraceID)
	}
	if v := got.Get(SpanIDKey); len(v) != 1 || v[0] != tc.SpanID {
		t.Errorf("metadata span id = %v, want %q", v, tc.SpanID)
	}
}

func TestLogger(t *testing.T) {
	tc := New()
	ctx := WithContext(context.Background(), tc)
	log := Logger(ctx)

	// Verify it does not panic and carries the trace attrs
	log.Debug("trace logger smoke")
}
