package errors

import (
	"bytes"
	stderrors "errors"
	"text/template"

	"github.com/louisbranch/party-overview/internal/platform/i18n/catalog"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// Domain is the error domain reported in gRPC error details.
const Domain = "github.com/louisbranch/party-overview"

// Error is the service error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message for logs
	Metadata map[string]string // Template values for the localized message
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with a code and internal message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates an error carrying template values.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates an error that wraps cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// HTTPStatus returns the HTTP status for err.
func HTTPStatus(err error) int {
	return CodeOf(err).HTTPStatus()
}

// LocalizedMessage renders the user-facing message for err in locale.
func LocalizedMessage(err error, locale string) string {
	var e *Error
	if !stderrors.As(err, &e) {
		return Format(locale, CodeUnknown, nil)
	}
	return Format(locale, e.Code, e.Metadata)
}

// Format renders the catalog template for code. Missing templates fall back
// to the code itself and broken templates to their raw text.
func Format(locale string, code Code, metadata map[string]string) string {
	_, messages := catalog.Default().NamespaceMessages(locale, "errors")
	text, ok := messages[string(code)]
	if !ok {
		return string(code)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	tmpl, err := template.New("msg").Option("missingkey=zero").Parse(text)
	if err != nil {
		return text
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, metadata); err != nil {
		return text
	}
	return buf.String()
}

// ToGRPCStatus converts the error to a gRPC status carrying ErrorInfo and a
// LocalizedMessage for locale.
func (e *Error) ToGRPCStatus(locale string) error {
	grpcCode := e.Code.GRPCCode()
	st := status.New(grpcCode, e.Message)
	detailed, err := st.WithDetails(
		&errdetails.ErrorInfo{
			Reason:   string(e.Code),
			Domain:   Domain,
			Metadata: e.Metadata,
		},
		&errdetails.LocalizedMessage{
			Locale:  locale,
			Message: Format(locale, e.Code, e.Metadata),
		},
	)
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}
