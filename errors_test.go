package onepage

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"search error", newError(KindNotConverged, 3, nil, "no luck"), KindNotConverged},
		{"wrapped search error", fmt.Errorf("export: %w", newError(KindRenderUnavailable, 1, cause, "render")), KindRenderUnavailable},
		{"closed", ErrClosed, KindClosed},
		{"wrapped closed", fmt.Errorf("run: %w", ErrClosed), KindClosed},
		{"deadline", context.DeadlineExceeded, KindTimedOut},
		{"canceled", fmt.Errorf("tab: %w", context.Canceled), KindTimedOut},
		{"other", cause, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsKind(t *testing.T) {
	if IsKind(nil, "") {
		t.Error(`IsKind(nil, "") = true`)
	}
	if IsKind(nil, KindInternal) {
		t.Error("IsKind(nil, KindInternal) = true")
	}
	if !IsKind(errors.New("x"), KindInternal) {
		t.Error("plain error is not KindInternal")
	}
	if !IsKind(newError(KindInvalidInput, 0, nil, "bad"), KindInvalidInput) {
		t.Error("SearchError kind not reported")
	}
}

func TestSearchError_Message(t *testing.T) {
	cause := errors.New("devtools gone")

	e := newError(KindRenderUnavailable, 2, cause, "onepage: render at height %d failed", 484)
	if got, want := e.Error(), "onepage: render at height 484 failed: devtools gone"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if e.Probes != 2 {
		t.Errorf("Probes = %d, want 2", e.Probes)
	}
	if !errors.Is(e, cause) {
		t.Error("SearchError does not wrap its cause")
	}

	bare := newError(KindInvalidInput, 0, nil, "onepage: width must be positive, got %v", -1.0)
	if got, want := bare.Error(), "onepage: width must be positive, got -1"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if errors.Unwrap(bare) != nil {
		t.Errorf("Unwrap() = %v, want nil", errors.Unwrap(bare))
	}
}
