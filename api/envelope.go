package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// CodeOK is the envelope code the backend uses for business success.
const CodeOK = 200

// Envelope is the body shape every backend response shares.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// HasData reports whether the envelope carries a non-null data member.
func (e *Envelope) HasData() bool {
	if e == nil {
		return false
	}
	trimmed := bytes.TrimSpace(e.Data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Decode unmarshals the data member into v. A missing data member leaves v untouched.
func (e *Envelope) Decode(v any) error {
	if !e.HasData() {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode envelope data: %w", err)
	}
	return nil
}

// Classify maps one transport outcome to either a successful envelope or an
// [*Error]. It performs no I/O and has no side effects.
func Classify(status int, body []byte, transportErr error) (*Envelope, *Error) {
	if transportErr != nil {
		return nil, &Error{Kind: KindTransport, Err: transportErr}
	}

	switch status {
	case http.StatusOK:
		env, err := parseEnvelope(body)
		if err != nil {
			return nil, &Error{Kind: KindDecode, Status: status, Body: body, Err: err}
		}
		if env.Code != CodeOK {
			return nil, &Error{
				Kind:    KindBusiness,
				Status:  status,
				Code:    env.Code,
				Message: env.Message,
				Body:    body,
			}
		}
		return env, nil
	case http.StatusUnauthorized:
		out := &Error{Kind: KindUnauthorized, Status: status, Body: body}
		if env, err := parseEnvelope(body); err == nil {
			out.Code = env.Code
			out.Message = env.Message
		}
		return nil, out
	default:
		return nil, &Error{Kind: KindHTTPStatus, Status: status, Body: body}
	}
}

func parseEnvelope(body []byte) (*Envelope, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
