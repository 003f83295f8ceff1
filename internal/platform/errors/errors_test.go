package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeMappings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code     Code
		grpcCode codes.Code
		http     int
	}{
		{CodeInvalidInput, codes.InvalidArgument, http.StatusBadRequest},
		{CodeUnknownTab, codes.InvalidArgument, http.StatusBadRequest},
		{CodeFilterInvalid, codes.InvalidArgument, http.StatusBadRequest},
		{CodeNotFound, codes.NotFound, http.StatusNotFound},
		{CodeUnauthenticated, codes.Unauthenticated, http.StatusUnauthorized},
		{CodeForbidden, codes.PermissionDenied, http.StatusForbidden},
		{CodePanelClosed, codes.FailedPrecondition, http.StatusConflict},
		{CodeProjectionFailed, codes.Internal, http.StatusInternalServerError},
		{CodeUnknown, codes.Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.GRPCCode(); got != tt.grpcCode {
				t.Fatalf("GRPCCode = %v, want %v", got, tt.grpcCode)
			}
			if got := tt.code.HTTPStatus(); got != tt.http {
				t.Fatalf("HTTPStatus = %d, want %d", got, tt.http)
			}
		})
	}
}

func TestErrorChain(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("disk full")
	err := fmt.Errorf("save actor: %w", Wrap(CodeUnknown, "write roster", cause))

	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if !stderrors.Is(err, New(CodeUnknown, "")) {
		t.Fatal("expected code match via Is")
	}
	if stderrors.Is(err, New(CodeNotFound, "")) {
		t.Fatal("unexpected code match")
	}
	if got := err.Error(); got != "save actor: write roster: disk full" {
		t.Fatalf("Error = %q", got)
	}
}

func TestCodeOfAndHTTPStatus(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("toggle: %w", New(CodeForbidden, "viewer is not gm"))
	if got := CodeOf(err); got != CodeForbidden {
		t.Fatalf("CodeOf = %v", got)
	}
	if got := HTTPStatus(err); got != http.StatusForbidden {
		t.Fatalf("HTTPStatus = %d", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf plain = %v", got)
	}
}

func TestLocalizedMessage(t *testing.T) {
	t.Parallel()

	err := WithMetadata(CodeUnknownTab, "unknown tab", map[string]string{"Tab": "spells"})
	if got := LocalizedMessage(err, "en-US"); got != "Tab spells does not exist." {
		t.Fatalf("en-US = %q", got)
	}
	if got := LocalizedMessage(err, "pt-BR"); got != "A aba spells não existe." {
		t.Fatalf("pt-BR = %q", got)
	}
	if got := LocalizedMessage(err, "fr-FR"); got != "Tab spells does not exist." {
		t.Fatalf("fallback = %q", got)
	}
	if got := LocalizedMessage(stderrors.New("x"), "en-US"); got != "Something went wrong." {
		t.Fatalf("plain = %q", got)
	}
}

func TestFormatFallbacks(t *testing.T) {
	t.Parallel()

	if got := Format("en-US", Code("NOPE"), nil); got != "NOPE" {
		t.Fatalf("missing template = %q", got)
	}
	if got := Format("en-US", CodeUnknownTab, nil); got != "Tab  does not exist." {
		t.Fatalf("missing metadata = %q", got)
	}
}

func TestToGRPCStatusAttachesDetails(t *testing.T) {
	t.Parallel()

	err := New(CodePanelClosed, "panel closed").ToGRPCStatus("en-US")
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected grpc status, got %v", err)
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("code = %v", st.Code())
	}

	var info *errdetails.ErrorInfo
	var localized *errdetails.LocalizedMessage
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			info = d
		case *errdetails.LocalizedMessage:
			localized = d
		}
	}
	if info == nil || info.GetReason() != string(CodePanelClosed) || info.GetDomain() != Domain {
		t.Fatalf("ErrorInfo = %v", info)
	}
	if localized == nil || localized.GetMessage() != "The party overview is closed." {
		t.Fatalf("LocalizedMessage = %v", localized)
	}
}
