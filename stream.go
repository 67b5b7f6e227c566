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

import (
	"context"
)

// result is one slot of a streamed sequence: either a value or a
// terminal error. A producer sends zero or more values, then at most one
// error, then closes its channel.
type result[T any] struct {
	val T
	err error
}

// StreamingRequest is a single-consumer, single-shot lazy sequence of
// typed request messages. It must not be restarted once exhausted.
type StreamingRequest[T any] struct {
	items <-chan result[T]
}

// NewStreamingRequest spawns a producer goroutine that calls produce,
// which should invoke send for each message it has available and return
// a non-nil error (or context.Canceled) to terminate the stream early.
// A nil return after sending zero or more items is a clean end of stream.
func NewStreamingRequest[T any](produce func(send func(T)) error) *StreamingRequest[T] {
	ch := make(chan result[T], 1)
	go func() {
		defer close(ch)
		if err := produce(func(v T) { ch <- result[T]{val: v} }); err != nil {
			ch <- result[T]{err: err}
		}
	}()
	return &StreamingRequest[T]{items: ch}
}

// Next blocks until the next message is available, the stream ends
// cleanly, the stream ends with an error, or ctx is canceled (surfacing
// as a CodeCanceled *Error, matching cancellation via RST_STREAM/
// connection loss per the concurrency model).
func (s *StreamingRequest[T]) Next(ctx context.Context) (value T, ok bool, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return value, false, NewError(CodeCanceled, ctxErr.Error())
	}
	select {
	case <-ctx.Done():
		return value, false, NewError(CodeCanceled, ctx.Err().Error())
	case r, open := <-s.items:
		if !open {
			return value, false, nil
		}
		if r.err != nil {
			return value, false, r.err
		}
		return r.val, true, nil
	}
}

// mapRequestStream lazily transforms a StreamingRequest[In] into a
// StreamingRequest[Out], applying f to each item as it's pulled. This is
// how the dispatcher turns a byte-frame stream into a typed request
// stream using a method's Marshaller.
func mapRequestStream[In, Out any](ctx context.Context, in *StreamingRequest[In], f func(In) (Out, error)) *StreamingRequest[Out] {
	return NewStreamingRequest(func(send func(Out)) error {
		for {
			v, ok, err := in.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			out, err := f(v)
			if err != nil {
				return err
			}
			send(out)
		}
	})
}

// collapseToOne drains a request stream that is contractually supposed to
// carry exactly one message (unary and server-streaming input sides). Zero
// or more than one message is a protocol error, per the "collapse to
// single" rule in the adapter design.
func collapseToOne[T any](ctx context.Context, s *StreamingRequest[T]) (T, error) {
	var zero T
	v, ok, err := s.Next(ctx)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, errProtocol("expected exactly one request message, got none")
	}
	_, ok, err = s.Next(ctx)
	if err != nil {
		return zero, err
	}
	if ok {
		return zero, errProtocol("expected exactly one request message")
	}
	return v, nil
}

// StreamingResponse is a single-consumer, single-shot lazy sequence of
// typed response messages, carrying leading initial metadata (available
// immediately) and trailing metadata (resolved only once the sequence is
// exhausted).
type StreamingResponse[T any] struct {
	initial   Metadata
	items     <-chan result[T]
	trailerCh <-chan Metadata
	trailer   Metadata

	// deferred, when set, means this stream's identity -- including its
	// initial metadata -- isn't known until the resolver finishes. The
	// pooled executor uses this: dispatching a call is itself blocking
	// work (collapsing the request stream, running the handler), so the
	// resulting StreamingResponse can only be produced from inside the
	// pool's goroutine, not synchronously when Start returns.
	deferred <-chan *StreamingResponse[T]
}

// NewDeferredStreamingResponse wraps a StreamingResponse whose production
// requires blocking work the caller wants to run on another goroutine.
// resolve runs there; every accessor below blocks on it exactly once and
// then delegates to the resolved stream, so initial metadata is still
// seen to resolve before the first item regardless of which CallStarter
// produced it.
func NewDeferredStreamingResponse[T any](resolve func() *StreamingResponse[T]) *StreamingResponse[T] {
	ch := make(chan *StreamingResponse[T], 1)
	go func() { ch <- resolve() }()
	return &StreamingResponse[T]{deferred: ch}
}

func (s *StreamingResponse[T]) resolve() *StreamingResponse[T] {
	if s.deferred != nil {
		inner := <-s.deferred
		s.deferred = nil
		*s = *inner
	}
	return s
}

// InitialMetadata returns the metadata to send before the first data
// frame, blocking until it's known if this stream is still deferred.
func (s *StreamingResponse[T]) InitialMetadata() Metadata {
	s.resolve()
	return s.initial
}

// Next behaves like StreamingRequest.Next.
func (s *StreamingResponse[T]) Next(ctx context.Context) (value T, ok bool, err error) {
	s.resolve()
	select {
	case <-ctx.Done():
		return value, false, NewError(CodeCanceled, ctx.Err().Error())
	case r, open := <-s.items:
		if !open {
			return value, false, nil
		}
		if r.err != nil {
			return value, false, r.err
		}
		return r.val, true, nil
	}
}

// TrailerMetadata resolves the trailing metadata. It must only be called
// after Next has reported the stream exhausted (ok == false, err == nil);
// calling it earlier blocks until production finishes.
func (s *StreamingResponse[T]) TrailerMetadata() Metadata {
	s.resolve()
	if s.trailerCh != nil {
		s.trailer = <-s.trailerCh
		s.trailerCh = nil
	}
	return s.trailer
}

// NewStreamingResponse builds a response stream with initial metadata
// resolved up front and trailing metadata resolved by produce's return
// value once it finishes sending.
func NewStreamingResponse[T any](initial Metadata, produce func(send func(T)) (Metadata, error)) *StreamingResponse[T] {
	items := make(chan result[T], 1)
	trailerCh := make(chan Metadata, 1)
	go func() {
		defer close(items)
		trailer, err := produce(func(v T) { items <- result[T]{val: v} })
		if err != nil {
			items <- result[T]{err: err}
		}
		trailerCh <- trailer
	}()
	return &StreamingResponse[T]{initial: initial, items: items, trailerCh: trailerCh}
}

// mapResponseStream lazily transforms a StreamingResponse[In] into a
// StreamingResponse[Out], used by the dispatcher to encode typed handler
// responses back into wire frames.
func mapResponseStream[In, Out any](ctx context.Context, in *StreamingResponse[In], f func(In) (Out, error)) *StreamingResponse[Out] {
	return NewStreamingResponse(in.initial, func(send func(Out)) (Metadata, error) {
		for {
			v, ok, err := in.Next(ctx)
			if err != nil {
				return in.TrailerMetadata(), err
			}
			if !ok {
				return in.TrailerMetadata(), nil
			}
			out, err := f(v)
			if err != nil {
				return in.TrailerMetadata(), err
			}
			send(out)
		}
	})
}

// errStream builds a response stream that produces no items and fails
// immediately with err -- used when dispatch can't even start (e.g. an
// unknown method, or a handler panic).
func errStream[T any](err error) *StreamingResponse[T] {
	return NewStreamingResponse[T](nil, func(send func(T)) (Metadata, error) {
		return nil, err
	})
}

// SingleResponse is a degenerate response producing at most one item plus
// trailing metadata. It's what unary and client-streaming handlers return.
type SingleResponse[T any] struct {
	msg     T
	trailer Metadata
	err     error
}

// NewSingleResponse wraps a completed value as a SingleResponse.
func NewSingleResponse[T any](msg T) *SingleResponse[T] {
	return &SingleResponse[T]{msg: msg}
}

// WithTrailer attaches trailing metadata to a SingleResponse, returning
// the same value for chaining at the call site.
func (s *SingleResponse[T]) WithTrailer(m Metadata) *SingleResponse[T] {
	s.trailer = m
	return s
}

// FailedResponse builds a SingleResponse that carries only an error --
// typically a *Error{Code: s, Message: m} signaling a specific gRPC
// status, per the GrpcMessage error kind.
func FailedResponse[T any](err error) *SingleResponse[T] {
	return &SingleResponse[T]{err: err}
}

// IntoStream lifts a SingleResponse to a one-(or-zero-)item
// StreamingResponse, as every handler adapter does before handing a
// result back to the dispatcher.
func (s *SingleResponse[T]) IntoStream() *StreamingResponse[T] {
	if s.err != nil {
		return errStream[T](s.err)
	}
	msg, trailer := s.msg, s.trailer
	return NewStreamingResponse[T](nil, func(send func(T)) (Metadata, error) {
		send(msg)
		return trailer, nil
	})
}
