package errs

import (
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Gateway error taxonomy. Codes are stable wire values; names are the
// string form carried in error events.
const (
	CodeAuthRequired = 10001
	CodeAuthFailed   = 10002
	CodeNotFound     = 10003
	CodeAccessDenied = 10004
	CodeValidation   = 10005
	CodeConflict     = 10006
	CodeInternal     = 10500
)

var codeNames = map[int]string{
	CodeAuthRequired: "AUTH_REQUIRED",
	CodeAuthFailed:   "AUTH_FAILED",
	CodeNotFound:     "NOT_FOUND",
	CodeAccessDenied: "ACCESS_DENIED",
	CodeValidation:   "VALIDATION_ERROR",
	CodeConflict:     "CONFLICT",
	CodeInternal:     "INTERNAL",
}

var (
	ErrAuthRequired = NewCodeError(CodeAuthRequired, "authentication required")
	ErrAuthFailed   = NewCodeError(CodeAuthFailed, "authentication failed")
	ErrNotFound     = NewCodeError(CodeNotFound, "not found")
	ErrAccessDenied = NewCodeError(CodeAccessDenied, "access denied")
	ErrValidation   = NewCodeError(CodeValidation, "validation failed")
	ErrConflict     = NewCodeError(CodeConflict, "conflict")
	ErrInternal     = NewCodeError(CodeInternal, "internal error")
)

// CodeName maps a taxonomy code to its wire name. Unknown codes report
// as INTERNAL so clients never see an empty code.
func CodeName(code int) string {
	if n, ok := codeNames[code]; ok {
		return n
	}
	return codeNames[CodeInternal]
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// WithDetail returns a copy carrying extra detail; the receiver is not
// mutated so the package-level sentinels stay clean.
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// Wrap attaches a stack to the coded error for logs at collaborator
// boundaries.
func (e *CodeError) Wrap() error {
	return errors.WithStack(e)
}

// WrapMsg returns the coded error with detail and a captured stack.
func (e *CodeError) WrapMsg(msg string) error {
	return errors.WithStack(e.WithDetail(msg))
}

func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !stderrors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

// AsCodeError extracts a CodeError from err, unwrapping as needed.
// Anything that is not a coded error collapses to Internal, keeping the
// underlying message as detail.
func AsCodeError(err error) *CodeError {
	if err == nil {
		return nil
	}
	var ce *CodeError
	if stderrors.As(err, &ce) {
		return ce
	}
	return ErrInternal.WithDetail(err.Error())
}

// WrapExternal marks a collaborator failure as Internal while keeping
// the cause chain for logging.
func WrapExternal(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ce *CodeError
	if stderrors.As(err, &ce) {
		return err
	}
	return errors.Wrap(ErrInternal.WithDetail(msg+": "+err.Error()), msg)
}
