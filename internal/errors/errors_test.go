package errors

import (
	"context"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Unknown},
		{"structured", New(ModelNotLoaded, "classify.faces", "session gone"), ModelNotLoaded},
		{"wrapped structured", fmt.Errorf("frame 12: %w", New(StorageFailure, "telemetry.store", "")), StorageFailure},
		{"deadline", context.DeadlineExceeded, ProcessingTimeout},
		{"wrapped deadline", fmt.Errorf("join: %w", context.DeadlineExceeded), ProcessingTimeout},
		{"grpc unavailable", status.Error(codes.Unavailable, "conn refused"), NetworkUnavailable},
		{"grpc exhausted", status.Error(codes.ResourceExhausted, "oom"), InsufficientMemory},
		{"grpc precondition", status.Error(codes.FailedPrecondition, "model not loaded"), ModelNotLoaded},
		{"grpc internal", status.Error(codes.Internal, "inference crashed"), ClassifierError},
		{"plain", fmt.Errorf("something odd"), Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorFormat(t *testing.T) {
	err := Wrap(fmt.Errorf("socket closed"), NetworkUnavailable, "classify.nsfw")
	got := err.Error()
	want := "[network] classify.nsfw caused by: socket closed"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if err.Unwrap() == nil {
		t.Error("Unwrap() = nil, want cause")
	}
}

func TestGRPCCode(t *testing.T) {
	if got := New(ProcessingTimeout, "op", "").GRPCCode(); got != codes.DeadlineExceeded {
		t.Errorf("GRPCCode() = %v, want DeadlineExceeded", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(fmt.Errorf("opaque")) {
		t.Error("IsRetryable(unknown) = true, want false")
	}
	if !IsRetryable(New(ProcessingTimeout, "op", "")) {
		t.Error("IsRetryable(timeout) = false, want true")
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(ClassifierError, "classify.faces", "bad tensor"))
	if !IsKind(err, ClassifierError) {
		t.Error("IsKind(wrapped, ClassifierError) = false, want true")
	}
	if IsKind(err, StorageFailure) {
		t.Error("IsKind(wrapped, StorageFailure) = true, want false")
	}
}
