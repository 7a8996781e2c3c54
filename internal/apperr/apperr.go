package apperr

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is a generic sentinel for tenant-scope violations.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
)

// Envelope codes. 1xxxx generic, 2xxxx auth, 3xxxx ticket, 4xxxx training,
// 5xxxx access, 6xxxx onboarding.
const (
	CodeOK               = 0
	CodeUnknownError     = 10000
	CodeValidationError  = 10001
	CodeNotFound         = 10002
	CodePermissionDenied = 10003
	CodeRateLimit        = 10004

	CodeAuthFailed        = 20001
	CodeTokenExpired      = 20002
	CodeTokenInvalid      = 20003
	CodeUserNotFound      = 20004
	CodePasswordIncorrect = 20005
	CodeUserLocked        = 20006

	CodeTicketNotFound        = 30001
	CodeTicketCancelled       = 30002
	CodeTicketExpired         = 30003
	CodeTicketChangeForbidden = 30004
	CodeWorkerNotInTicket     = 30005
	CodeAreaNotInTicket       = 30006
	CodeVideoNotInTicket      = 30007

	CodeTrainingNotStarted        = 40001
	CodeTrainingAlreadyCompleted  = 40002
	CodeTrainingFailed            = 40003
	CodeSessionTokenInvalid       = 40004
	CodeSessionExpired            = 40005
	CodeFaceVerifyFailed          = 40006
	CodeRandomCheckFailed         = 40007

	CodeAccessGrantNotFound = 50001
	CodeAccessSyncFailed    = 50002
	CodeAccessRevoked       = 50003
	CodeOutOfTimeWindow     = 50004
	CodeTrainingIncomplete  = 50005

	CodeWorkerNotFoundInRealname = 60001
	CodeWorkerAlreadyBound       = 60002
	CodeBindFailed               = 60003
	CodeWechatAuthFailed         = 60004
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error is a typed business error carrying the envelope code. Validation
// failures additionally carry per-field details.
type Error struct {
	Code    int
	Message string
	Fields  []FieldError
}

func (e *Error) Error() string {
	return e.Message
}

func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Validation(message string, fields ...FieldError) *Error {
	return &Error{Code: CodeValidationError, Message: message, Fields: fields}
}

// ChangeForbidden wraps the compensation admissibility rejections; field
// errors name the offending edit.
func ChangeForbidden(fields ...FieldError) *Error {
	return &Error{
		Code:    CodeTicketChangeForbidden,
		Message: "ticket change not admitted",
		Fields:  fields,
	}
}

// CodeOf extracts the envelope code from err, or CodeUnknownError.
func CodeOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodePermissionDenied
	case errors.Is(err, ErrUnauthorized):
		return CodeAuthFailed
	}
	return CodeUnknownError
}

// As unwraps err into a typed business error if it is one.
func As(err error) (*Error, bool) {
	var ae *Error
	ok := errors.As(err, &ae)
	return ae, ok
}
