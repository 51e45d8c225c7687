package beacon

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per validation step
var (
	ErrRoutingMismatch = errors.New("beacon destination does not match")
	ErrLengthMismatch  = errors.New("length does not match beacon 0")
	ErrUnsupportedType = errors.New("unknown beacon type")
)

// ErrorKind identifies which check rejected a frame
type ErrorKind int

const (
	KindRoutingMismatch ErrorKind = iota + 1
	KindLengthMismatch
	KindUnsupportedType
)

// String returns the kind name used in logs and statistics
func (k ErrorKind) String() string {
	switch k {
	case KindRoutingMismatch:
		return "routing_mismatch"
	case KindLengthMismatch:
		return "length_mismatch"
	case KindUnsupportedType:
		return "unsupported_type"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// DecodeError is returned by Decode when a frame is rejected
type DecodeError struct {
	Kind   ErrorKind
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return e.sentinel().Error()
	}
	return fmt.Sprintf("%s: %s", e.sentinel(), e.Detail)
}

// Unwrap lets errors.Is match the sentinel for the kind
func (e *DecodeError) Unwrap() error {
	return e.sentinel()
}

func (e *DecodeError) sentinel() error {
	switch e.Kind {
	case KindRoutingMismatch:
		return ErrRoutingMismatch
	case KindLengthMismatch:
		return ErrLengthMismatch
	case KindUnsupportedType:
		return ErrUnsupportedType
	default:
		return fmt.Errorf("beacon decode error kind %d", int(e.Kind))
	}
}

func newDecodeError(kind ErrorKind, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a decode error, or 0 if err is not one
func KindOf(err error) ErrorKind {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
