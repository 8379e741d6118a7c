package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContextReturnsAttachedLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := WithLogger(context.Background(), base)
	ctx = WithFields(ctx, zap.String("request_id", "req-1"))

	L(ctx).Info("hello")

	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.ContextMap()["request_id"] != "req-1" {
		t.Fatalf("expected request_id field, got %v", entry.ContextMap())
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatalf("expected default logger")
	}
}

func TestFromContextOrPrefersRequestLogger(t *testing.T) {
	reqCore, reqLogs := observer.New(zap.InfoLevel)
	fbCore, fbLogs := observer.New(zap.InfoLevel)
	fallback := zap.New(fbCore)

	FromContextOr(context.Background(), fallback).Info("outside request")
	if fbLogs.Len() != 1 {
		t.Fatalf("expected fallback logger to be used")
	}

	ctx := WithLogger(context.Background(), zap.New(reqCore))
	FromContextOr(ctx, fallback).Info("inside request")
	if reqLogs.Len() != 1 || fbLogs.Len() != 1 {
		t.Fatalf("expected request logger to be used, got req=%d fallback=%d", reqLogs.Len(), fbLogs.Len())
	}
}
