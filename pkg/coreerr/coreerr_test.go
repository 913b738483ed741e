package coreerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/liarsdice/persistence/pkg/coreerr"
)

func TestCoreError_IsMatchesKind(t *testing.T) {
	t.Parallel()

	err := coreerr.New(coreerr.Timeout, "acquire exceeded 100ms")

	if !errors.Is(err, coreerr.ErrTimeout) {
		t.Fatalf("errors.Is(err, ErrTimeout) = false, want true")
	}

	if errors.Is(err, coreerr.ErrInvalidState) {
		t.Fatalf("errors.Is(err, ErrInvalidState) = true, want false")
	}
}

func TestCoreError_KindSurvivesWrapping(t *testing.T) {
	t.Parallel()

	base := coreerr.New(coreerr.QueryFailed, "unique constraint")
	wrapped := fmt.Errorf("with_transaction: %w", base)

	if !errors.Is(wrapped, coreerr.ErrQueryFailed) {
		t.Fatalf("errors.Is(wrapped, ErrQueryFailed) = false, want true")
	}

	kind, ok := coreerr.Of(wrapped)
	if !ok {
		t.Fatalf("coreerr.Of(wrapped) ok=false, want true")
	}

	if kind != coreerr.QueryFailed {
		t.Fatalf("kind=%v, want %v", kind, coreerr.QueryFailed)
	}
}

func TestCoreError_UnwrapReturnsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := coreerr.Wrap(coreerr.Internal, "backup copy failed", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}
}

func TestCoreError_WithEngineCodeAppearsInMessage(t *testing.T) {
	t.Parallel()

	err := coreerr.New(coreerr.QueryFailed, "insert failed").WithEngineCode("SQLITE_CONSTRAINT")

	want := "query_failed: insert failed (engine: SQLITE_CONSTRAINT)"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestKind_StringIsStable(t *testing.T) {
	t.Parallel()

	cases := map[coreerr.Kind]string{
		coreerr.InvalidParameter: "invalid_parameter",
		coreerr.InvalidState:     "invalid_state",
		coreerr.QueryFailed:      "query_failed",
		coreerr.ConnectionFailed: "connection_failed",
		coreerr.Timeout:          "timeout",
		coreerr.Irreversible:     "irreversible",
		coreerr.Internal:         "internal",
	}

	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestOf_FalseForPlainError(t *testing.T) {
	t.Parallel()

	_, ok := coreerr.Of(errors.New("plain"))
	if ok {
		t.Fatalf("coreerr.Of(plain error) ok=true, want false")
	}
}
