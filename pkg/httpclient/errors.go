package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 64 << 10

// UpstreamError describes a non-2xx answer from a third-party API.
type UpstreamError struct {
	Service string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.Status, e.Message)
}

// ClientError reports whether the upstream rejected the request itself.
func (e *UpstreamError) ClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// upstreamBody covers the error shapes of the APIs this service calls:
// SendGrid's {"errors":[{"message"}]}, Google OAuth's
// {"error","error_description"} and Google API's {"error":{"message"}}.
type upstreamBody struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Error            json.RawMessage `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// ParseResponseError consumes and closes resp.Body and returns an
// *UpstreamError carrying the most specific message found in it.
func ParseResponseError(resp *http.Response, service string) *UpstreamError {
	defer func() { _ = resp.Body.Close() }()

	upErr := &UpstreamError{Service: service, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return upErr
	}
	if msg := extractMessage(raw); msg != "" {
		upErr.Message = msg
		return upErr
	}
	if text := strings.TrimSpace(string(raw)); text != "" && !strings.HasPrefix(text, "<") {
		upErr.Message = text
	}
	return upErr
}

func extractMessage(raw []byte) string {
	var body upstreamBody
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	if body.ErrorDescription != "" {
		return body.ErrorDescription
	}
	var msgs []string
	for _, e := range body.Errors {
		if e.Message != "" {
			msgs = append(msgs, e.Message)
		}
	}
	if len(msgs) > 0 {
		return strings.Join(msgs, "; ")
	}
	if len(body.Error) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(body.Error, &s) == nil {
		return s
	}
	var nested struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body.Error, &nested) == nil {
		return nested.Message
	}
	return ""
}
