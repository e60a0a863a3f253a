package respbuilder

import "net/http"

type ErrKind int64

const (
	ErrUnhandled ErrKind = iota + 1
	ErrValidation
	ErrResourceNotFound
	ErrUnauthorized
	ErrNotConfigured
	ErrUpstream
	ErrConflict
)

type Reason struct {
	Code       string
	Message    string
	HTTPStatus int
}

var ReasonMap = map[ErrKind]Reason{
	ErrUnhandled:        {Code: "01", Message: "unhandled error", HTTPStatus: http.StatusInternalServerError},
	ErrValidation:       {Code: "02", Message: "error validation", HTTPStatus: http.StatusBadRequest},
	ErrResourceNotFound: {Code: "04", Message: "resource not found", HTTPStatus: http.StatusNotFound},
	ErrUnauthorized:     {Code: "05", Message: "unauthorized", HTTPStatus: http.StatusUnauthorized},
	ErrNotConfigured:    {Code: "06", Message: "credentials are not configured", HTTPStatus: http.StatusPreconditionFailed},
	ErrUpstream:         {Code: "07", Message: "upstream service error", HTTPStatus: http.StatusBadGateway},
	ErrConflict:         {Code: "08", Message: "operation not allowed in current state", HTTPStatus: http.StatusConflict},
}

// Status returns the http status of an error kind, 500 when unknown.
func Status(kind ErrKind) int {
	reason, ok := ReasonMap[kind]
	if !ok {
		return http.StatusInternalServerError
	}

	return reason.HTTPStatus
}

// ErrorEntity contain code, message, debug (*if applicable) and trace id.
type ErrorEntity struct {
	Code    string `json:"error_code"`        // to handle by FE
	Message string `json:"error_description"` // to handle by FE (string version of the error code)
	Debug   string `json:"debug,omitempty"`   // technical error
	TraceID string `json:"trace_id"`
}

// HTTPError follow Facebook error response object:
// https://developers.facebook.com/docs/graph-api/using-graph-api/error-handling/
type HTTPError struct {
	Err ErrorEntity `json:"error"`
}

func (e HTTPError) Error() string {
	return e.Err.Message + ": " + e.Err.Debug
}

// HTTPSuccess success response always wrap in data key.
type HTTPSuccess struct {
	TraceID string      `json:"trace_id"`
	Data    interface{} `json:"data"`
}
