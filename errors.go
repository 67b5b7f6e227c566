// Copyright 2021-2022 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package grpc

import "fmt"

// Code is a gRPC status code, as carried in the grpc-status trailer.
type Code int32

const (
	CodeOK                 Code = 0
	CodeCanceled           Code = 1
	CodeUnknown            Code = 2
	CodeInvalidArgument    Code = 3
	CodeDeadlineExceeded   Code = 4
	CodeNotFound           Code = 5
	CodeAlreadyExists      Code = 6
	CodePermissionDenied   Code = 7
	CodeResourceExhausted  Code = 8
	CodeFailedPrecondition Code = 9
	CodeAborted            Code = 10
	CodeOutOfRange         Code = 11
	CodeUnimplemented      Code = 12
	CodeInternal           Code = 13
	CodeUnavailable        Code = 14
	CodeDataLoss           Code = 15
	CodeUnauthenticated    Code = 16
)

// Error is the sole error type this package's public surface returns. Its
// Code is always a wire-ready gRPC status code; the bridge never needs to
// guess a mapping the way it does for errors from outside this package
// (those are folded into CodeUnknown).
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("grpc: %s: %s", codeName(e.Code), e.Message)
}

// NewError constructs an *Error carrying an explicit gRPC status, as a
// handler would when it wants to signal a specific failure to the client.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func errProtocol(format string, args ...any) *Error {
	return Errorf(CodeInternal, format, args...)
}

func errUnimplemented(name string) *Error {
	return Errorf(CodeUnimplemented, "unknown method %s", name)
}

func errInvalidMetadata(format string, args ...any) *Error {
	return Errorf(CodeInternal, format, args...)
}

func errPanic(recovered any) *Error {
	return Errorf(CodeInternal, "panic: %v", recovered)
}

// asError unwraps any error into an *Error, mapping everything this
// package didn't itself construct to CodeUnknown -- the "any other handler
// error" row of the error table.
func asError(err error) *Error {
	if err == nil {
		return nil
	}
	if ge, ok := err.(*Error); ok {
		return ge
	}
	return &Error{Code: CodeUnknown, Message: err.Error()}
}

var codeNames = map[Code]string{
	CodeOK:                 "OK",
	CodeCanceled:           "CANCELED",
	CodeUnknown:            "UNKNOWN",
	CodeInvalidArgument:    "INVALID_ARGUMENT",
	CodeDeadlineExceeded:   "DEADLINE_EXCEEDED",
	CodeNotFound:           "NOT_FOUND",
	CodeAlreadyExists:      "ALREADY_EXISTS",
	CodePermissionDenied:   "PERMISSION_DENIED",
	CodeResourceExhausted:  "RESOURCE_EXHAUSTED",
	CodeFailedPrecondition: "FAILED_PRECONDITION",
	CodeAborted:            "ABORTED",
	CodeOutOfRange:         "OUT_OF_RANGE",
	CodeUnimplemented:      "UNIMPLEMENTED",
	CodeInternal:           "INTERNAL",
	CodeUnavailable:        "UNAVAILABLE",
	CodeDataLoss:           "DATA_LOSS",
	CodeUnauthenticated:    "UNAUTHENTICATED",
}

func codeName(c Code) string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "CODE(" + fmt.Sprint(int32(c)) + ")"
}
