package irrd

import "fmt"

// Error codes reported by the client.
const (
	ArgumentError = iota

	ConnectionError

	ClosedError

	ProtocolError

	KeyNotFoundError

	KeyNotUniqueError

	ServerError

	UnexpectedDataError

	DecodeError

	PipelineActiveError

	UnknownError
)

// Error is the error type returned by all client operations. Code is one of
// the error code constants above; Cause, when set, is the underlying error.
type Error struct {
	Code    int
	Message string
	Cause   error
}

func (err *Error) Error() string {
	name := errorName(err.Code)
	switch {
	case err.Message != "" && err.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", name, err.Message, err.Cause)
	case err.Message != "":
		return fmt.Sprintf("%s: %s", name, err.Message)
	case err.Cause != nil:
		return fmt.Sprintf("%s: %v", name, err.Cause)
	}
	return name
}

func (err *Error) Unwrap() error {
	return err.Cause
}

// Is matches two client errors by code, so callers can branch with
// errors.Is(err, &Error{Code: ClosedError}).
func (err *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Code == err.Code
}

// NewError builds a client error. The optional trailing arguments are a
// message string and/or an underlying cause.
func NewError(errorCode int, details ...interface{}) *Error {
	err := &Error{Code: errorCode}
	for _, detail := range details {
		switch value := detail.(type) {
		case string:
			err.Message = value
		case error:
			err.Cause = value
		default:
			err.Message = fmt.Sprintf("%v", value)
		}
	}
	return err
}

// ErrorCode extracts the client error code from err, or UnknownError if err
// was not produced by this package.
func ErrorCode(err error) int {
	if clientErr, ok := err.(*Error); ok {
		return clientErr.Code
	}
	return UnknownError
}

func errorName(errorCode int) string {
	switch errorCode {
	case ArgumentError:
		return "ArgumentError"
	case ConnectionError:
		return "ConnectionError"
	case ClosedError:
		return "ClosedError"
	case ProtocolError:
		return "ProtocolError"
	case KeyNotFoundError:
		return "KeyNotFoundError"
	case KeyNotUniqueError:
		return "KeyNotUniqueError"
	case ServerError:
		return "ServerError"
	case UnexpectedDataError:
		return "UnexpectedDataError"
	case DecodeError:
		return "DecodeError"
	case PipelineActiveError:
		return "PipelineActiveError"
	default:
		return "UnknownError"
	}
}
