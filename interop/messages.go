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

// Package interop provides a TestService implementation matching the
// standard gRPC interoperability test surface, wired against the core
// dispatch engine to exercise every handler adapter and streaming flavor
// end to end.
package interop

// Payload carries an opaque, printable body of a requested size.
type Payload struct {
	Body []byte `json:"body"`
}

// EchoStatus lets a caller ask the server to fail a call with a specific
// status, used by the forced-failure scenarios.
type EchoStatus struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// Empty is the request and response type for EmptyCall.
type Empty struct{}

// SimpleRequest is UnaryCall's and CacheableUnaryCall's request.
type SimpleRequest struct {
	ResponseSize   int32       `json:"response_size"`
	ResponseStatus *EchoStatus `json:"response_status,omitempty"`
}

// SimpleResponse is UnaryCall's and CacheableUnaryCall's response.
type SimpleResponse struct {
	Payload Payload `json:"payload"`
}

// ResponseParameters requests one payload of Size bytes from a streaming
// response call.
type ResponseParameters struct {
	Size int32 `json:"size"`
}

// StreamingOutputCallRequest is StreamingOutputCall's and
// FullDuplexCall's request.
type StreamingOutputCallRequest struct {
	ResponseParameters []ResponseParameters `json:"response_parameters"`
	ResponseStatus     *EchoStatus          `json:"response_status,omitempty"`
}

// StreamingOutputCallResponse is StreamingOutputCall's, FullDuplexCall's,
// and HalfDuplexCall's response.
type StreamingOutputCallResponse struct {
	Payload Payload `json:"payload"`
}

// StreamingInputCallRequest is StreamingInputCall's request, sent once per
// message on the client stream.
type StreamingInputCallRequest struct {
	Payload Payload `json:"payload"`
}

// StreamingInputCallResponse is StreamingInputCall's response: the sum of
// every request payload's length.
type StreamingInputCallResponse struct {
	AggregatedPayloadSize int32 `json:"aggregated_payload_size"`
}
