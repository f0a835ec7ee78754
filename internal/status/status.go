// Package status carries the tagged result type used uniformly across the
// write buffer, the storage engine, and the public database handle.
package status

import "fmt"

// Kind identifies the category of a Status.
type Kind uint8

const (
	// KindOK indicates success.
	KindOK Kind = iota
	// KindNotFound indicates the requested key has no live value.
	KindNotFound
	// KindDeleteOrder indicates the write buffer holds a tombstone for the
	// key. This kind is internal: it never crosses the public read
	// boundary, where it is rewritten to KindNotFound.
	KindDeleteOrder
	// KindIOError indicates a filesystem, compressor, or bounds failure.
	KindIOError
	// KindInvalidArgument indicates a malformed chunk stream detected by a
	// downstream collaborator.
	KindInvalidArgument
)

// Status is a tagged result carrying a Kind plus an optional message. It
// implements error so it composes with idiomatic Go error handling; OK
// statuses are represented as nil error at API boundaries rather than as a
// non-nil Status with KindOK, following Go convention.
type Status struct {
	kind Kind
	msg  string
}

// OK is the canonical success status.
var OK = Status{kind: KindOK}

// NotFound builds a Status of KindNotFound.
func NotFound(msg string) Status {
	return Status{kind: KindNotFound, msg: msg}
}

// DeleteOrder builds a Status of KindDeleteOrder.
func DeleteOrder(msg string) Status {
	return Status{kind: KindDeleteOrder, msg: msg}
}

// IOError builds a Status of KindIOError.
func IOError(msg string) Status {
	return Status{kind: KindIOError, msg: msg}
}

// IOErrorf builds a Status of KindIOError with a formatted message.
func IOErrorf(format string, args ...any) Status {
	return Status{kind: KindIOError, msg: fmt.Sprintf(format, args...)}
}

// InvalidArgument builds a Status of KindInvalidArgument.
func InvalidArgument(msg string) Status {
	return Status{kind: KindInvalidArgument, msg: msg}
}

// Kind returns the status's kind.
func (s Status) Kind() Kind { return s.kind }

// Error implements the error interface. Calling Error on an OK status
// returns an empty string; callers should check IsOK before treating a
// Status as an error.
func (s Status) Error() string {
	if s.kind == KindOK {
		return ""
	}
	if s.msg == "" {
		return s.kind.String()
	}
	return fmt.Sprintf("%s: %s", s.kind, s.msg)
}

// IsOK reports whether s is the success status.
func (s Status) IsOK() bool { return s.kind == KindOK }

// IsNotFound reports whether s is KindNotFound.
func (s Status) IsNotFound() bool { return s.kind == KindNotFound }

// IsDeleteOrder reports whether s is KindDeleteOrder.
func (s Status) IsDeleteOrder() bool { return s.kind == KindDeleteOrder }

// IsIOError reports whether s is KindIOError.
func (s Status) IsIOError() bool { return s.kind == KindIOError }

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "OK"
	case KindNotFound:
		return "NotFound"
	case KindDeleteOrder:
		return "DeleteOrder"
	case KindIOError:
		return "IOError"
	case KindInvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// AsError converts s to a Go error: nil when OK, s itself otherwise.
func (s Status) AsError() error {
	if s.IsOK() {
		return nil
	}
	return s
}
