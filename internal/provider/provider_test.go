package provider

import (
	"errors"
	"fmt"
	"testing"
)

func TestRemoteDataError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("run aborted: %w", Remote("screener", cause))

	var remoteErr *RemoteDataError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteDataError in chain, got %v", err)
	}
	if remoteErr.Op != "screener" {
		t.Errorf("Op = %q, want screener", remoteErr.Op)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
	if got := remoteErr.Error(); got != "remote data error (screener): connection refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestRemoteNil(t *testing.T) {
	if err := Remote("quotes", nil); err != nil {
		t.Errorf("Remote(nil) = %v, want nil", err)
	}
}
