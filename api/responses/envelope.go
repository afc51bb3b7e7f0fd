package responses

// RequestIDHeader carries the id the request-id middleware assigns to every request.
const RequestIDHeader = "X-Request-Id"

// SuccessEnvelope wraps every 2xx body as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public face of a pkgerrors.Error. RequestID echoes the
// X-Request-Id header so a caller can quote it when reporting a failed scan or adjustment.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
