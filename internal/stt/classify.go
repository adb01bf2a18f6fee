package stt

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/omspatilgit/BolBharat-AI/internal/resilience"
)

// ClassifyProviderError maps a provider failure to the transient/permanent
// taxonomy consumed by the retry executor. Timeouts, throttling and
// connectivity failures are transient; malformed input and permission
// problems are permanent.
func ClassifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	// A caller-supplied deadline expiring mid-call is a transient failure.
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.Transient(err)
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return resilience.Transient(err)
		case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied,
			codes.Unauthenticated, codes.FailedPrecondition, codes.OutOfRange:
			return resilience.Permanent(err)
		}
	}
	return resilience.Transient(err)
}
