package ctxutil

import (
	"context"
	"testing"
)

func TestLogFields(t *testing.T) {
	if kv := LogFields(context.Background()); kv != nil {
		t.Fatalf("expected no fields, got %v", kv)
	}
	ctx := WithTraceData(context.Background(), &TraceData{RequestID: "r-1"})
	kv := LogFields(ctx)
	if len(kv) != 2 || kv[0] != "request_id" || kv[1] != "r-1" {
		t.Fatalf("fields = %v", kv)
	}
}
