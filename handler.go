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

import "context"

// dispatchFunc is the type-erased, byte-level contract every registered
// method is reduced to: take a deframed request-frame stream, return a
// response-frame stream. The HTTP-to-gRPC bridge never sees Req/Resp.
type dispatchFunc func(ctx context.Context, opts RequestOptions, req *StreamingRequest[[]byte]) *StreamingResponse[[]byte]

// A Handler is the server-side implementation of a single RPC, built by
// one of the four constructors below according to its streaming flavor.
type Handler struct {
	spec     Spec
	dispatch dispatchFunc
}

// runHandler is the one panic boundary this package installs around user
// code. It sits at the entry of every adapter's call into the registered
// handler function; deeper frames (marshalling, stream plumbing) propagate
// ordinary errors instead of panicking, so a programming error anywhere
// else stays visible as a process crash.
func runHandler[T any](call func() T) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errPanic(r)
		}
	}()
	return call(), nil
}

// NewUnaryHandler constructs a Handler for a request-response procedure:
// the input stream is collapsed to exactly one message (failing with
// Error{Code: CodeInternal} on zero or more than one), fn runs once, and
// its SingleResponse is lifted back to a stream.
func NewUnaryHandler[Req, Resp any](
	procedure string,
	reqCodec Marshaller[Req],
	respCodec Marshaller[Resp],
	fn func(ctx context.Context, opts RequestOptions, req Req) *SingleResponse[Resp],
) *Handler {
	dispatch := func(ctx context.Context, opts RequestOptions, rawReq *StreamingRequest[[]byte]) *StreamingResponse[[]byte] {
		typedReq := mapRequestStream(ctx, rawReq, reqCodec.Read)
		req, err := collapseToOne(ctx, typedReq)
		if err != nil {
			return errStream[[]byte](err)
		}
		resp, err := runHandler(func() *SingleResponse[Resp] { return fn(ctx, opts, req) })
		if err != nil {
			return errStream[[]byte](err)
		}
		return mapResponseStream(ctx, resp.IntoStream(), respCodec.Write)
	}
	return &Handler{spec: Spec{Procedure: procedure, StreamType: StreamTypeUnary}, dispatch: dispatch}
}

// NewClientStreamHandler constructs a Handler for a client-streaming
// procedure: the input stream passes through unconstrained, and fn
// returns a single response once it's consumed as much of it as it needs.
func NewClientStreamHandler[Req, Resp any](
	procedure string,
	reqCodec Marshaller[Req],
	respCodec Marshaller[Resp],
	fn func(ctx context.Context, opts RequestOptions, req *StreamingRequest[Req]) *SingleResponse[Resp],
) *Handler {
	dispatch := func(ctx context.Context, opts RequestOptions, rawReq *StreamingRequest[[]byte]) *StreamingResponse[[]byte] {
		typedReq := mapRequestStream(ctx, rawReq, reqCodec.Read)
		resp, err := runHandler(func() *SingleResponse[Resp] { return fn(ctx, opts, typedReq) })
		if err != nil {
			return errStream[[]byte](err)
		}
		return mapResponseStream(ctx, resp.IntoStream(), respCodec.Write)
	}
	return &Handler{spec: Spec{Procedure: procedure, StreamType: StreamTypeClient}, dispatch: dispatch}
}

// NewServerStreamHandler constructs a Handler for a server-streaming
// procedure: the input stream is collapsed to exactly one message, and fn
// returns a full response stream.
func NewServerStreamHandler[Req, Resp any](
	procedure string,
	reqCodec Marshaller[Req],
	respCodec Marshaller[Resp],
	fn func(ctx context.Context, opts RequestOptions, req Req) *StreamingResponse[Resp],
) *Handler {
	dispatch := func(ctx context.Context, opts RequestOptions, rawReq *StreamingRequest[[]byte]) *StreamingResponse[[]byte] {
		typedReq := mapRequestStream(ctx, rawReq, reqCodec.Read)
		req, err := collapseToOne(ctx, typedReq)
		if err != nil {
			return errStream[[]byte](err)
		}
		resp, err := runHandler(func() *StreamingResponse[Resp] { return fn(ctx, opts, req) })
		if err != nil {
			return errStream[[]byte](err)
		}
		return mapResponseStream(ctx, resp, respCodec.Write)
	}
	return &Handler{spec: Spec{Procedure: procedure, StreamType: StreamTypeServer}, dispatch: dispatch}
}

// NewBidiStreamHandler constructs a Handler for a bidirectional
// procedure: both sides pass through unconstrained.
func NewBidiStreamHandler[Req, Resp any](
	procedure string,
	reqCodec Marshaller[Req],
	respCodec Marshaller[Resp],
	fn func(ctx context.Context, opts RequestOptions, req *StreamingRequest[Req]) *StreamingResponse[Resp],
) *Handler {
	dispatch := func(ctx context.Context, opts RequestOptions, rawReq *StreamingRequest[[]byte]) *StreamingResponse[[]byte] {
		typedReq := mapRequestStream(ctx, rawReq, reqCodec.Read)
		resp, err := runHandler(func() *StreamingResponse[Resp] { return fn(ctx, opts, typedReq) })
		if err != nil {
			return errStream[[]byte](err)
		}
		return mapResponseStream(ctx, resp, respCodec.Write)
	}
	return &Handler{spec: Spec{Procedure: procedure, StreamType: StreamTypeBidi}, dispatch: dispatch}
}
