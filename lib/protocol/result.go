// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"
)

// Result is the outcome code of a request.
type Result int

const (
	ResultSuccess Result = iota
	ResultUnknown
	ResultInputParam
	ResultMemory
	ResultReqNotComplete
	ResultAuthenticationFailed
	ResultAccessDenied
	ResultNoSuchObject
)

var resultText = map[Result]string{
	ResultSuccess:              "Success",
	ResultUnknown:              "Unknown error",
	ResultInputParam:           "Invalid function parameter was given",
	ResultMemory:               "Memory allocation error",
	ResultReqNotComplete:       "Request is not complete",
	ResultAuthenticationFailed: "User does not have sufficient rigths to perform an operation",
	ResultAccessDenied:         "Insufficient privileges",
	ResultNoSuchObject:         "No such object",
}

// Strerror returns the description of a result code.
func Strerror(code Result) string {
	if text, ok := resultText[code]; ok {
		return text
	}
	return "Unknown error code"
}

func (r Result) String() string {
	return Strerror(r)
}

// ResultError is a failure with a specific result code: a request
// rejected before it was sent, or one the service refused.
type ResultError struct {
	Code    Result
	Message string
}

func (e *ResultError) Error() string {
	if e.Message == "" {
		return Strerror(e.Code)
	}
	return Strerror(e.Code) + ": " + e.Message
}

// Errorf returns a *ResultError with a formatted message.
func Errorf(code Result, format string, args ...any) error {
	return &ResultError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// TransportError reports that the service could not be reached or the
// connection failed before a response arrived.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a truncated or malformed message.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return "decoding " + e.Field + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CodeOf maps err onto the result code reported for it. Errors that
// carry no code of their own are ResultUnknown.
func CodeOf(err error) Result {
	if err == nil {
		return ResultSuccess
	}
	var resultErr *ResultError
	if errors.As(err, &resultErr) {
		return resultErr.Code
	}
	return ResultUnknown
}
