// Package auditerr defines the tagged error kinds raised while establishing
// the audit identity and while talking to the finding store.
package auditerr

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// Kind classifies an error by the stage that produced it.
type Kind string

const (
	// KindIdentity indicates the caller identity could not be verified.
	KindIdentity Kind = "IdentityError"
	// KindAssumeRole indicates a role assumption failed.
	KindAssumeRole Kind = "AssumeRoleError"
	// KindOrgMetadata indicates organization metadata could not be fetched.
	KindOrgMetadata Kind = "OrgMetadataError"
	// KindStore indicates a finding-store call failed.
	KindStore Kind = "StoreError"
	// KindExpiredCredentials indicates credentials expired and could not be renewed.
	KindExpiredCredentials Kind = "ExpiredCredentialsError"
	// KindConfig indicates invalid or unloadable configuration.
	KindConfig Kind = "ConfigError"
)

// Fatal reports whether errors of this kind must abort the audit run.
func (k Kind) Fatal() bool {
	return k != KindStore
}

// Error is a structured error carrying the provider's error code and message.
type Error struct {
	// Kind classifies the error.
	Kind Kind

	// Op is the operation that failed, e.g. "sts:AssumeRole".
	Op string

	// Code is the provider error code, if the cause was an API error.
	Code string

	// Message is the provider error message, or the cause's text.
	Message string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Op)
	switch {
	case e.Code != "":
		msg = fmt.Sprintf("%s: %s -- %s", msg, e.Code, e.Message)
	case e.Message != "":
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with the given kind. When err is an AWS API error its code
// and message are lifted onto the returned Error.
func New(kind Kind, op string, err error) *Error {
	e := &Error{Kind: kind, Op: op, Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		e.Code = apiErr.ErrorCode()
		e.Message = apiErr.ErrorMessage()
	} else if err != nil {
		e.Message = err.Error()
	}
	return e
}

// Newf creates an Error without an underlying cause.
func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind checks if err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsFatal reports whether err must terminate the run. Untagged errors are
// treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	k, ok := KindOf(err)
	if !ok {
		return true
	}
	return k.Fatal()
}

// Fields returns structured log fields describing err.
func Fields(err error) []zap.Field {
	var e *Error
	if !errors.As(err, &e) {
		return []zap.Field{zap.Error(err)}
	}
	fields := []zap.Field{
		zap.String("kind", string(e.Kind)),
		zap.String("op", e.Op),
	}
	if e.Code != "" {
		fields = append(fields, zap.String("error_code", e.Code))
	}
	if e.Message != "" {
		fields = append(fields, zap.String("error_message", e.Message))
	}
	return fields
}
