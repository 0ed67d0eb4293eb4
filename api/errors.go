package api

import (
	"errors"
	"fmt"
)

// Kind classifies a failed gateway call. The zero value is reserved for success
// and never appears on an [*Error].
type Kind uint8

const (
	// KindBusiness means the transport succeeded but the envelope code was not 200.
	KindBusiness Kind = iota + 1
	// KindUnauthorized means the server answered with HTTP 401.
	KindUnauthorized
	// KindHTTPStatus means any other non-200 transport status.
	KindHTTPStatus
	// KindTransport means no response was received.
	KindTransport
	// KindDecode means a 200 response carried a body that is not an envelope, or
	// whose data does not fit the record type a binding expects.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindBusiness:
		return "business"
	case KindUnauthorized:
		return "unauthorized"
	case KindHTTPStatus:
		return "http_status"
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	default:
		return "ok"
	}
}

var (
	// ErrBusiness matches any [*Error] of [KindBusiness] via errors.Is.
	ErrBusiness = errors.New("business error")
	// ErrUnauthorized matches any [*Error] of [KindUnauthorized] via errors.Is.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrHTTPStatus matches any [*Error] of [KindHTTPStatus] via errors.Is.
	ErrHTTPStatus = errors.New("unexpected http status")
	// ErrTransport matches any [*Error] of [KindTransport] via errors.Is.
	ErrTransport = errors.New("transport failure")
	// ErrDecode matches any [*Error] of [KindDecode] via errors.Is.
	ErrDecode = errors.New("malformed response")
)

// Error is the rejection returned by [Gateway.Request] and [Gateway.Upload].
//
// Status is the transport status (0 when no response arrived), Code and Message come
// from the envelope when one could be decoded, and Body keeps the raw response.
type Error struct {
	Kind    Kind
	Status  int
	Code    int
	Message string
	Body    []byte
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case KindBusiness:
		if e.Message != "" {
			return fmt.Sprintf("business error %d: %s", e.Code, e.Message)
		}
		return fmt.Sprintf("business error %d", e.Code)
	case KindUnauthorized:
		return "unauthorized (401)"
	case KindHTTPStatus:
		return fmt.Sprintf("unexpected http status %d", e.Status)
	case KindTransport:
		if e.Err != nil {
			return "transport failure: " + e.Err.Error()
		}
		return "transport failure"
	case KindDecode:
		if e.Err != nil {
			return "malformed response: " + e.Err.Error()
		}
		return "malformed response"
	default:
		return "api error"
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets callers match on the kind sentinels without type assertions.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	return sentinelFor(e.Kind) == target
}

func sentinelFor(k Kind) error {
	switch k {
	case KindBusiness:
		return ErrBusiness
	case KindUnauthorized:
		return ErrUnauthorized
	case KindHTTPStatus:
		return ErrHTTPStatus
	case KindTransport:
		return ErrTransport
	case KindDecode:
		return ErrDecode
	default:
		return nil
	}
}

// AsError extracts the gateway error from err, if any.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr, true
	}
	return nil, false
}
