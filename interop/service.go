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

package interop

import (
	"context"

	"golang.org/x/sync/errgroup"

	grpc "github.com/shaneutt/grpc-go"
)

// dictionary is the alphabet makeBody cycles through to fill a payload
// of a requested size. Kept character-for-character as the server this
// implementation is interoperable with, typo included.
const dictionary = "ABCDEFGHIJKLMNOPQRSTUVabcdefghijklmnoqprstuvwxyz0123456789"

func makeBody(size int) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = dictionary[i%len(dictionary)]
	}
	return out
}

// TestService implements the standard gRPC interop surface.
type TestService struct{}

// EmptyCall returns Empty, unconditionally.
func (TestService) EmptyCall(_ context.Context, _ grpc.RequestOptions, _ Empty) *grpc.SingleResponse[Empty] {
	return grpc.NewSingleResponse(Empty{})
}

// UnaryCall echoes a payload of the requested size, or fails with the
// caller-requested status if ResponseStatus carries a non-zero code.
func (TestService) UnaryCall(_ context.Context, _ grpc.RequestOptions, req SimpleRequest) *grpc.SingleResponse[SimpleResponse] {
	if req.ResponseStatus != nil && req.ResponseStatus.Code != 0 {
		return grpc.FailedResponse[SimpleResponse](grpc.NewError(grpc.Code(req.ResponseStatus.Code), req.ResponseStatus.Message))
	}
	return grpc.NewSingleResponse(SimpleResponse{Payload: Payload{Body: makeBody(int(req.ResponseSize))}})
}

// CacheableUnaryCall is not exercised by any current interop client; it
// remains a stub that echoes an empty response.
func (TestService) CacheableUnaryCall(_ context.Context, _ grpc.RequestOptions, _ SimpleRequest) *grpc.SingleResponse[SimpleResponse] {
	return grpc.NewSingleResponse(SimpleResponse{})
}

// buildPayloads fans the requested sizes out to one goroutine each, joined
// with errgroup (no concurrency limit is set), and fans the results back
// in, preserving request order.
func buildPayloads(ctx context.Context, params []ResponseParameters) ([]Payload, error) {
	payloads := make([]Payload, len(params))
	g, _ := errgroup.WithContext(ctx)
	for i, p := range params {
		i, size := i, int(p.Size)
		g.Go(func() error {
			payloads[i] = Payload{Body: makeBody(size)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}

// StreamingOutputCall emits one response payload per requested size.
func (TestService) StreamingOutputCall(ctx context.Context, _ grpc.RequestOptions, req StreamingOutputCallRequest) *grpc.StreamingResponse[StreamingOutputCallResponse] {
	if req.ResponseStatus != nil && req.ResponseStatus.Code != 0 {
		return grpc.FailedResponse[StreamingOutputCallResponse](
			grpc.NewError(grpc.Code(req.ResponseStatus.Code), req.ResponseStatus.Message)).IntoStream()
	}
	payloads, err := buildPayloads(ctx, req.ResponseParameters)
	if err != nil {
		return grpc.FailedResponse[StreamingOutputCallResponse](err).IntoStream()
	}
	return grpc.NewStreamingResponse[StreamingOutputCallResponse](nil, func(send func(StreamingOutputCallResponse)) (grpc.Metadata, error) {
		for _, p := range payloads {
			send(StreamingOutputCallResponse{Payload: p})
		}
		return nil, nil
	})
}

// StreamingInputCall sums the length of every request payload's body.
func (TestService) StreamingInputCall(ctx context.Context, _ grpc.RequestOptions, reqs *grpc.StreamingRequest[StreamingInputCallRequest]) *grpc.SingleResponse[StreamingInputCallResponse] {
	var total int32
	for {
		req, ok, err := reqs.Next(ctx)
		if err != nil {
			return grpc.FailedResponse[StreamingInputCallResponse](err)
		}
		if !ok {
			break
		}
		total += int32(len(req.Payload.Body))
	}
	return grpc.NewSingleResponse(StreamingInputCallResponse{AggregatedPayloadSize: total})
}

// FullDuplexCall echoes each incoming request's requested sizes as
// response payloads, in order, failing the whole stream the moment a
// request asks for a non-zero status.
func (TestService) FullDuplexCall(ctx context.Context, _ grpc.RequestOptions, reqs *grpc.StreamingRequest[StreamingOutputCallRequest]) *grpc.StreamingResponse[StreamingOutputCallResponse] {
	return grpc.NewStreamingResponse[StreamingOutputCallResponse](nil, func(send func(StreamingOutputCallResponse)) (grpc.Metadata, error) {
		for {
			req, ok, err := reqs.Next(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			if req.ResponseStatus != nil && req.ResponseStatus.Code != 0 {
				return nil, grpc.NewError(grpc.Code(req.ResponseStatus.Code), req.ResponseStatus.Message)
			}
			payloads, err := buildPayloads(ctx, req.ResponseParameters)
			if err != nil {
				return nil, err
			}
			for _, p := range payloads {
				send(StreamingOutputCallResponse{Payload: p})
			}
		}
	})
}

// HalfDuplexCall has no known interop client exercising it; it remains a
// stub that closes the response stream immediately without reading input.
func (TestService) HalfDuplexCall(_ context.Context, _ grpc.RequestOptions, _ *grpc.StreamingRequest[StreamingOutputCallRequest]) *grpc.StreamingResponse[StreamingOutputCallResponse] {
	return grpc.NewStreamingResponse[StreamingOutputCallResponse](nil, func(send func(StreamingOutputCallResponse)) (grpc.Metadata, error) {
		return nil, nil
	})
}
