package handlers

import (
	"net/http"
	"path/filepath"
	"runtime"
)

// ErrorType classifies a structured error entry.
type ErrorType string

const (
	ErrorTypeDatabase       ErrorType = "database"
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeUnauthorized   ErrorType = "unauthorized"
	ErrorTypeNotFound       ErrorType = "not_found"
)

// ErrorDetail is a consistent shape for reporting errors. Loc defaults
// to the call site when unset.
type ErrorDetail struct {
	Type  ErrorType `json:"type"`
	Msg   any       `json:"msg"`
	Input any       `json:"input"`
	Loc   any       `json:"loc"`
	Ctx   any       `json:"ctx"`
}

// DetailResponse is the error envelope. Detail is a list of ErrorDetail
// entries, except for the bare "Not authenticated" denial, where it is
// a plain string.
type DetailResponse struct {
	Detail any `json:"detail"`
}

// newDetail builds an ErrorDetail with Loc set to the caller.
func newDetail(errType ErrorType, msg any) ErrorDetail {
	return ErrorDetail{
		Type: errType,
		Msg:  msg,
		Loc:  callerLoc(2),
	}
}

func (d ErrorDetail) withInput(input any) ErrorDetail {
	d.Input = input
	return d
}

func (d ErrorDetail) withCtx(ctx any) ErrorDetail {
	d.Ctx = ctx
	return d
}

// writeDetail writes a detail-list error response.
func writeDetail(w http.ResponseWriter, status int, details ...ErrorDetail) {
	writeJSON(w, status, DetailResponse{Detail: details})
}

func callerLoc(skip int) []string {
	pc, file, _, ok := runtime.Caller(skip)
	if !ok {
		return nil
	}
	loc := []string{filepath.Base(file)}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc = append(loc, fn.Name())
	}
	return loc
}
