package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from an upstream service. Message is the
// upstream's own text and is safe to show to the user verbatim.
type APIError struct {
	Service string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, e.Message)
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// decodeError builds an APIError from a failed response body. The message
// comes from a "message" or "error" field when the body is JSON, otherwise
// from the raw body.
func decodeError(service string, status int, body []byte) *APIError {
	msg := strings.TrimSpace(string(body))

	var envelope struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Message != "":
			msg = envelope.Message
		case len(envelope.Error) > 0:
			var s string
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(envelope.Error, &s) == nil && s != "" {
				msg = s
			} else if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
				msg = nested.Message
			}
		}
	}

	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Service: service, Status: status, Message: msg}
}
