// Package errors provides structured service errors with transport mappings
// and localized user messages.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unclassified failure.
	CodeUnknown Code = "UNKNOWN"

	// Input validation
	CodeInvalidInput   Code = "INVALID_INPUT"
	CodeActorIDEmpty   Code = "ACTOR_ID_EMPTY"
	CodeActorNameEmpty Code = "ACTOR_NAME_EMPTY"
	CodeSceneIDEmpty   Code = "SCENE_ID_EMPTY"
	CodeUnknownTab     Code = "UNKNOWN_TAB"
	CodeUnknownSystem  Code = "UNKNOWN_SYSTEM"
	CodeFilterInvalid  Code = "FILTER_INVALID"

	// Lookup
	CodeNotFound Code = "NOT_FOUND"

	// Viewer privilege
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"

	// Panel state
	CodePanelClosed      Code = "PANEL_CLOSED"
	CodeProjectionFailed Code = "PROJECTION_FAILED"
)

// GRPCCode maps the code to a gRPC status code.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalidInput,
		CodeActorIDEmpty,
		CodeActorNameEmpty,
		CodeSceneIDEmpty,
		CodeUnknownTab,
		CodeUnknownSystem,
		CodeFilterInvalid:
		return codes.InvalidArgument
	case CodeNotFound:
		return codes.NotFound
	case CodeUnauthenticated:
		return codes.Unauthenticated
	case CodeForbidden:
		return codes.PermissionDenied
	case CodePanelClosed:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

// HTTPStatus maps the code to an HTTP status.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.FailedPrecondition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
