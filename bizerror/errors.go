package bizerror

import (
	"errors"
	"net/http"
)

// The error taxonomy of the governance engine. Every condition is
// recoverable by the caller and maps to a discriminable response code.
var (
	ErrDuplicateWorkflow   = errors.New("duplicate workflow")
	ErrNotFound            = errors.New("not found")
	ErrUnknownTier         = errors.New("unknown risk tier")
	ErrStageNotReady       = errors.New("stage not ready")
	ErrAlreadyTerminal     = errors.New("workflow already terminal")
	ErrAlreadyDecided      = errors.New("approval already decided")
	ErrConflict            = errors.New("concurrent update conflict")
	ErrAdvisoryUnavailable = errors.New("advisory unavailable")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}
