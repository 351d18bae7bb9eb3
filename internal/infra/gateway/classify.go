package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/opsgate/console/internal/core/domain"
)

// Classify turns a raw transport result into a typed Outcome. It is a
// pure function: no I/O, no retries, no logging.
func Classify(status int, raw []byte, err error) domain.Outcome {
	if err != nil {
		return classifyTransportError(err)
	}

	body := NormalizeBody(raw)

	switch {
	case status >= 500:
		return domain.Outcome{
			Kind:   domain.OutcomeServerError,
			Status: status,
			Body:   body,
			Raw:    raw,
			Reason: domain.ReasonServerError,
		}
	case status >= 400:
		return domain.Outcome{
			Kind:   domain.OutcomeClientError,
			Status: status,
			Body:   body,
			Raw:    raw,
			Reason: domain.ReasonClientError,
		}
	}

	// A 2xx payload can still carry an application-level error, but
	// only when "error" is the object's sole key. A payload where
	// "error" is one field among several (an error_rate metric, a
	// null error slot) is a legitimate success.
	if isErrorObject(body) {
		return domain.Outcome{
			Kind:   domain.OutcomeServerError,
			Status: status,
			Body:   body,
			Raw:    raw,
			Reason: domain.ReasonServerError,
		}
	}

	return domain.Outcome{
		Kind:   domain.OutcomeSuccess,
		Status: status,
		Body:   body,
		Raw:    raw,
	}
}

func classifyTransportError(err error) domain.Outcome {
	if isTimeout(err) {
		return domain.Outcome{
			Kind:   domain.OutcomeTimeout,
			Reason: domain.ReasonTimeout,
			Err:    err,
		}
	}

	reason := domain.ReasonUnknown
	var netErr net.Error
	if errors.As(err, &netErr) {
		reason = domain.ReasonConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		reason = domain.ReasonConnection
	}

	return domain.Outcome{
		Kind:   domain.OutcomeTransportError,
		Reason: reason,
		Err:    err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// NormalizeBody decodes a raw response body for classification. An
// empty body or an explicit null becomes an empty object; bytes that
// parse as JSON are decoded; anything else passes through as a string.
func NormalizeBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}
	}

	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return string(raw)
	}
	if decoded == nil {
		return map[string]any{}
	}
	return decoded
}

// isErrorObject reports whether body is a JSON object whose only key
// is "error". The single-key restriction is deliberate: it keeps
// payloads that merely contain an "error" field among others from
// being misclassified.
func isErrorObject(body any) bool {
	obj, ok := body.(map[string]any)
	if !ok || len(obj) != 1 {
		return false
	}
	_, ok = obj["error"]
	return ok
}

// StripQuery removes any query string before a path is used as a
// telemetry or operation key.
func StripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// idSegment matches trailing path segments that look like record ids:
// purely numeric, or opaque hex/uuid-style tokens of at least 8 chars.
var idSegment = regexp.MustCompile(`^([0-9]+|[0-9a-fA-F-]{8,})$`)

// InferOperation derives a coarse operation tag from method and path.
// The tag is used only for observability grouping; first match wins.
func InferOperation(method, path string) string {
	path = StripQuery(path)

	switch strings.ToUpper(method) {
	case "GET":
		segments := strings.Split(strings.Trim(path, "/"), "/")
		last := segments[len(segments)-1]
		if last != "" && idSegment.MatchString(last) {
			return "get"
		}
		return "list"
	case "POST":
		if strings.Contains(path, "/bulk") {
			return "bulk_delete"
		}
		if strings.Contains(path, "/export") {
			return "export"
		}
		return "create"
	case "PUT":
		return "update"
	case "PATCH":
		if strings.Contains(path, "/toggle") {
			return "toggle"
		}
		return "update"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

// encodeQuery renders query values deterministically for telemetry.
func encodeQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	return q.Encode()
}
