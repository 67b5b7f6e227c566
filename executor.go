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

	"golang.org/x/sync/semaphore"
)

// CallStarter chooses how a call's handler work is scheduled. Switching
// between implementations must not alter a correct handler's observable
// wire output.
type CallStarter interface {
	Start(ctx context.Context, service *ServerServiceDefinition, name string, opts RequestOptions, req *StreamingRequest[[]byte]) *StreamingResponse[[]byte]
}

// InlineCallStarter runs the call synchronously on the transport's own
// goroutine. Appropriate when handlers are themselves non-blocking.
type InlineCallStarter struct{}

func (InlineCallStarter) Start(ctx context.Context, service *ServerServiceDefinition, name string, opts RequestOptions, req *StreamingRequest[[]byte]) *StreamingResponse[[]byte] {
	method, err := service.Find(name)
	if err != nil {
		return errStream[[]byte](err)
	}
	return method.dispatch(ctx, opts, req)
}

// PooledCallStarter submits the call's full dispatch -- deframing through
// reframing -- to a bounded pool of goroutines, so a blocking handler
// cannot stall the HTTP/2 server's serve loop. The bound is enforced with
// golang.org/x/sync/semaphore rather than a fixed worker set.
type PooledCallStarter struct {
	sem *semaphore.Weighted
}

// NewPooledCallStarter builds a PooledCallStarter that runs at most size
// calls' dispatch (request collapse and the handler function's own
// invocation) concurrently; additional calls queue for a slot. The slot is
// released when dispatch returns, so the producer behind a streaming
// response keeps running outside the bound.
func NewPooledCallStarter(size int64) *PooledCallStarter {
	return &PooledCallStarter{sem: semaphore.NewWeighted(size)}
}

func (p *PooledCallStarter) Start(ctx context.Context, service *ServerServiceDefinition, name string, opts RequestOptions, req *StreamingRequest[[]byte]) *StreamingResponse[[]byte] {
	method, err := service.Find(name)
	if err != nil {
		return errStream[[]byte](err)
	}
	// Dispatching synchronously (collapsing the request stream, running
	// the handler) is blocking work; deferring it lets that happen inside
	// the pool's goroutine instead of the transport's, while still
	// surfacing initial metadata as "resolved before the first item" once
	// dispatch actually produces it.
	return NewDeferredStreamingResponse(func() *StreamingResponse[[]byte] {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return errStream[[]byte](NewError(CodeCanceled, err.Error()))
		}
		defer p.sem.Release(1)
		return method.dispatch(ctx, opts, req)
	})
}
