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

// Package grpc is a server-side gRPC-over-HTTP/2 call dispatch and
// streaming engine. It frames and deframes gRPC messages across HTTP/2
// DATA payloads, type-erases registered handlers of all four streaming
// flavors behind a uniform byte-level dispatch contract, and translates
// handler failures -- including panics -- into gRPC status trailers.
//
// The transport (TLS termination, HTTP/2 framing, flow control) and
// message serialization are external collaborators: this package consumes
// a byte stream per request and produces a byte stream per response.
package grpc

// StreamType describes the request/response arity a method was registered
// with. It's a bitmask so StreamTypeBidi can be tested for with either half
// set.
type StreamType uint8

const (
	StreamTypeUnary  StreamType = 0b00
	StreamTypeClient StreamType = 0b01
	StreamTypeServer StreamType = 0b10
	StreamTypeBidi              = StreamTypeClient | StreamTypeServer
)

func (s StreamType) String() string {
	switch s {
	case StreamTypeUnary:
		return "unary"
	case StreamTypeClient:
		return "client-streaming"
	case StreamTypeServer:
		return "server-streaming"
	case StreamTypeBidi:
		return "bidi"
	default:
		return "unknown"
	}
}

// Spec describes a single registered RPC: its fully-qualified name (the
// HTTP path it's reachable at) and its streaming flavor.
type Spec struct {
	Procedure  string
	StreamType StreamType
}

// Peer describes the other party to a call. Addr holds the client's
// address in IP:port form, as observed by the transport.
type Peer struct {
	Addr string
}

// RequestOptions is the per-call context handed to a handler. It is built
// fresh for every call and consumed by exactly one handler invocation; it
// must never be shared across calls.
type RequestOptions struct {
	Metadata Metadata
	Spec     Spec
	Peer     Peer
}
