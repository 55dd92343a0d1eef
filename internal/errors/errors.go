package errors

import (
	stderrors "errors"
	"fmt"
)

type ErrorCode string

const (
	CodePrecondition  ErrorCode = "precondition_failed"
	CodeConflict      ErrorCode = "conflict"
	CodeNotFound      ErrorCode = "not_found"
	CodeDataIntegrity ErrorCode = "data_integrity"
	CodeInvalidInput  ErrorCode = "invalid_input"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (se ServiceError) Error() string {
	if se.Err != nil {
		return fmt.Sprintf("%s: %v", se.Message, se.Err)
	}
	return se.Message
}

func (se ServiceError) Unwrap() error {
	return se.Err
}

// Is matches any ServiceError carrying the same code, so callers can write
// errors.Is(err, errors.ServiceError{Code: errors.CodeConflict}).
func (se ServiceError) Is(target error) bool {
	t, ok := target.(ServiceError)
	if !ok {
		return false
	}
	return t.Code == se.Code
}

var (
	ErrPrecondition  = ServiceError{Code: CodePrecondition}
	ErrConflict      = ServiceError{Code: CodeConflict}
	ErrNotFound      = ServiceError{Code: CodeNotFound}
	ErrDataIntegrity = ServiceError{Code: CodeDataIntegrity}
	ErrInvalidInput  = ServiceError{Code: CodeInvalidInput}
)

func Precondition(format string, args ...any) error {
	return ServiceError{Code: CodePrecondition, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return ServiceError{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return ServiceError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(format string, args ...any) error {
	return ServiceError{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// DataIntegrity wraps a failed ledger write.
func DataIntegrity(err error, format string, args ...any) error {
	return ServiceError{
		Code:    CodeDataIntegrity,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// CodeOf returns the code of the first ServiceError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var se ServiceError
	if stderrors.As(err, &se) {
		return se.Code, true
	}
	return "", false
}
