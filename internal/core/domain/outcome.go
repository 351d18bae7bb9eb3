package domain

// OutcomeKind classifies the result of a dispatched gateway call.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeClientError
	OutcomeServerError
	OutcomeTimeout
	OutcomeTransportError
)

// Error reason tags attached to outcomes for observability.
// They never drive control flow beyond routing back to the caller.
const (
	ReasonTimeout     = "timeout"
	ReasonClientError = "client_error"
	ReasonServerError = "server_error"
	ReasonConnection  = "connection_error"
	ReasonDecode      = "decode_error"
	ReasonUnknown     = "unknown_error"
)

// Outcome is the normalized result of one logical gateway call.
// Expected failures travel inside the Outcome; a Go error never
// crosses the public boundary for them.
type Outcome struct {
	Kind   OutcomeKind
	Status int
	Body   any
	// Raw holds the undecoded response bytes. Export-tagged operations
	// rely on it to re-serialize the payload verbatim.
	Raw []byte
	// ContentType is the upstream content type, kept so callers can
	// relay export payloads without re-inspecting the transport.
	ContentType string
	Reason      string
	Err         error
}

// Success reports whether the call completed without any error class.
func (o Outcome) Success() bool {
	return o.Kind == OutcomeSuccess
}

// Transient reports whether the outcome is worth retrying: timeouts
// and transport-level failures only. Application errors (4xx/5xx) are
// never transient.
func (o Outcome) Transient() bool {
	return o.Kind == OutcomeTimeout || o.Kind == OutcomeTransportError
}

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeClientError:
		return "client_error"
	case OutcomeServerError:
		return "server_error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}
