// Package coreerr defines the error taxonomy shared by every persistence
// component: state store, connection pool, schema manager, and backup
// manager all return errors of this shape instead of ad hoc sentinels, so
// callers (the game engine, the AI, the CLI) can branch on error kind
// programmatically with [errors.Is] and [errors.As].
package coreerr

import "fmt"

// Kind is one of the seven taxonomy values every [CoreError] carries.
type Kind uint8

const (
	// InvalidParameter reports an argument outside its contract: a missing
	// path, a version below 1, an empty pool config.
	InvalidParameter Kind = iota

	// InvalidState reports an operation illegal in the current component
	// state: a nested transaction, an acquire after shutdown, a restore
	// while connections are active.
	InvalidState

	// QueryFailed reports that the embedded engine rejected a statement.
	QueryFailed

	// ConnectionFailed reports that a connection could not be opened, or an
	// open connection entered the Error state and the pool could not
	// satisfy an acquire request.
	ConnectionFailed

	// Timeout reports that acquire exceeded its deadline. Expected and
	// recoverable.
	Timeout

	// Irreversible reports a rollback requested across a migration lacking
	// a down path.
	Irreversible

	// Internal reports a filesystem, compression, checksum, or unexpected
	// invariant violation: a bug or environmental failure.
	Internal
)

func (k Kind) String() string {
	switch k {
	case InvalidParameter:
		return "invalid_parameter"
	case InvalidState:
		return "invalid_state"
	case QueryFailed:
		return "query_failed"
	case ConnectionFailed:
		return "connection_failed"
	case Timeout:
		return "timeout"
	case Irreversible:
		return "irreversible"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// CoreError is the error type returned across every persistence-core
// component boundary. The zero value is not meaningful; construct with
// [New] or [Wrap].
type CoreError struct {
	Kind       Kind
	Message    string
	EngineCode string // optional underlying-engine error code/text
	Err        error  // optional wrapped cause
}

func (e *CoreError) Error() string {
	if e.EngineCode != "" {
		return fmt.Sprintf("%s: %s (engine: %s)", e.Kind, e.Message, e.EngineCode)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a [CoreError] of the same [Kind], or one of
// the sentinel values in this package. This lets callers write
// errors.Is(err, coreerr.ErrTimeout) without constructing a [CoreError].
func (e *CoreError) Is(target error) bool {
	sentinel, ok := target.(*CoreError)
	if !ok {
		return false
	}

	return sentinel.Kind == e.Kind && sentinel.Message == ""
}

// New constructs a [CoreError] with no wrapped cause.
func New(kind Kind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message}
}

// Newf constructs a [CoreError] with a formatted message.
func Newf(kind Kind, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a [CoreError] that wraps an underlying cause.
func Wrap(kind Kind, message string, err error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Err: err}
}

// WithEngineCode attaches the underlying engine's error text and returns the
// same error for chaining.
func (e *CoreError) WithEngineCode(code string) *CoreError {
	e.EngineCode = code

	return e
}

// Sentinel values for errors.Is comparisons against a bare [Kind], e.g.
// errors.Is(err, coreerr.ErrTimeout). These carry no message so [CoreError.Is]
// matches any error of the same kind.
var (
	ErrInvalidParameter = &CoreError{Kind: InvalidParameter}
	ErrInvalidState     = &CoreError{Kind: InvalidState}
	ErrQueryFailed      = &CoreError{Kind: QueryFailed}
	ErrConnectionFailed = &CoreError{Kind: ConnectionFailed}
	ErrTimeout          = &CoreError{Kind: Timeout}
	ErrIrreversible     = &CoreError{Kind: Irreversible}
	ErrInternal         = &CoreError{Kind: Internal}
)

// Of reports the [Kind] of err if it is (or wraps) a [CoreError], and ok=false
// otherwise.
func Of(err error) (kind Kind, ok bool) {
	var ce *CoreError

	if asCoreError(err, &ce) {
		return ce.Kind, true
	}

	return 0, false
}

// asCoreError is a small local errors.As to avoid importing errors just for
// this one call site's generic instantiation noise.
func asCoreError(err error, target **CoreError) bool {
	for err != nil {
		if ce, ok := err.(*CoreError); ok {
			*target = ce

			return true
		}

		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}

		err = u.Unwrap()
	}

	return false
}
