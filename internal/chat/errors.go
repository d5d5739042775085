// ABOUTME: Error taxonomy for chat operations
// ABOUTME: Every failure carries a machine-checkable kind and a stable user-displayable message

package chat

import "errors"

// Kind classifies a chat operation failure. Transports map kinds to their
// own status codes; the message on the error is safe to show to users.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidArgument
	KindInvalidOperation
	KindPermissionDenied
	KindAlreadyExists
	KindUnavailable
)

// String returns the kind's stable name.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindInvalidOperation:
		return "invalid_operation"
	case KindPermissionDenied:
		return "permission_denied"
	case KindAlreadyExists:
		return "already_exists"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a classified chat failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from an error chain.
// Returns KindUnknown for nil or unclassified errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

func notFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func invalidArgument(msg string) error {
	return &Error{Kind: KindInvalidArgument, Message: msg}
}

func invalidOperation(msg string) error {
	return &Error{Kind: KindInvalidOperation, Message: msg}
}

func permissionDenied(msg string) error {
	return &Error{Kind: KindPermissionDenied, Message: msg}
}

func alreadyExists(msg string) error {
	return &Error{Kind: KindAlreadyExists, Message: msg}
}

func unavailable(msg string, err error) error {
	return &Error{Kind: KindUnavailable, Message: msg, Err: err}
}
