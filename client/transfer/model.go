package transfer

import "errors"

// Handle identifies one submitted transfer within an Engine. Handles are
// never reused and carry no meaning across Engine instances. The zero
// value is not a valid handle.
type Handle uint64

var (
	// ErrMissingURL indicates a descriptor without a request URL.
	ErrMissingURL = errors.New("missing request url")

	// ErrMalformedBody is the parent of every payload-shape violation a
	// descriptor can carry; Validate wraps the specific cause with it.
	ErrMalformedBody = errors.New("malformed request body")

	// ErrBodyConflict indicates a descriptor carrying both a raw body and
	// form fields; a request payload is one or the other.
	ErrBodyConflict = errors.New("raw body and form fields are mutually exclusive")

	// ErrMissingFieldName indicates a form field without a name.
	ErrMissingFieldName = errors.New("form field name must not be empty")

	// ErrMissingFilename indicates a file field without a filename.
	ErrMissingFilename = errors.New("file field filename must not be empty")

	// ErrAmbiguousField indicates a form field carrying both a plain value
	// and a file upload.
	ErrAmbiguousField = errors.New("form field cannot carry both a value and a file")

	// ErrLimitNegative is returned by SetConnectionLimits for negative limits.
	ErrLimitNegative = errors.New("must not be negative")
)

// completion is one entry in the engine's completion-notification queue.
// Exactly one of status/err is meaningful: err non-nil reports a transport
// failure, otherwise status holds the response code.
type completion struct {
	handle Handle
	status int
	err    error
}
