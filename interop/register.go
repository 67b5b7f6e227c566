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
	grpc "github.com/shaneutt/grpc-go"
)

// ServiceName is the fully-qualified interop test service name, matched
// against the standard grpc.testing.TestService interop clients expect.
const ServiceName = "grpc.testing.TestService"

func jsonCodec[T any]() grpc.Marshaller[T] {
	return grpc.JSONMarshaller[T]{New: func() T { var v T; return v }}
}

// emptyMarshaller codes Empty as a zero-length payload, matching the
// wire shape of the protobuf Empty message it stands in for (an empty
// proto message always marshals to 0 bytes). Routing Empty through
// jsonCodec instead would put "{}" on the wire, which is two bytes too
// many for EmptyCall's expected empty-frame response.
type emptyMarshaller struct{}

func (emptyMarshaller) Read([]byte) (Empty, error)  { return Empty{}, nil }
func (emptyMarshaller) Write(Empty) ([]byte, error) { return nil, nil }

// NewServiceDefinition builds the sealed ServerServiceDefinition for svc,
// ready to hand to grpc.NewServer.
func NewServiceDefinition(svc TestService) grpc.ServerServiceDefinition {
	b := grpc.NewServiceBuilder(ServiceName)

	b.Add("EmptyCall", grpc.NewUnaryHandler(
		ServiceName+"/EmptyCall", emptyMarshaller{}, emptyMarshaller{},
		svc.EmptyCall,
	))
	b.Add("UnaryCall", grpc.NewUnaryHandler(
		ServiceName+"/UnaryCall", jsonCodec[SimpleRequest](), jsonCodec[SimpleResponse](),
		svc.UnaryCall,
	))
	b.Add("CacheableUnaryCall", grpc.NewUnaryHandler(
		ServiceName+"/CacheableUnaryCall", jsonCodec[SimpleRequest](), jsonCodec[SimpleResponse](),
		svc.CacheableUnaryCall,
	))
	b.Add("StreamingOutputCall", grpc.NewServerStreamHandler(
		ServiceName+"/StreamingOutputCall", jsonCodec[StreamingOutputCallRequest](), jsonCodec[StreamingOutputCallResponse](),
		svc.StreamingOutputCall,
	))
	b.Add("StreamingInputCall", grpc.NewClientStreamHandler(
		ServiceName+"/StreamingInputCall", jsonCodec[StreamingInputCallRequest](), jsonCodec[StreamingInputCallResponse](),
		svc.StreamingInputCall,
	))
	b.Add("FullDuplexCall", grpc.NewBidiStreamHandler(
		ServiceName+"/FullDuplexCall", jsonCodec[StreamingOutputCallRequest](), jsonCodec[StreamingOutputCallResponse](),
		svc.FullDuplexCall,
	))
	b.Add("HalfDuplexCall", grpc.NewBidiStreamHandler(
		ServiceName+"/HalfDuplexCall", jsonCodec[StreamingOutputCallRequest](), jsonCodec[StreamingOutputCallResponse](),
		svc.HalfDuplexCall,
	))

	return b.Build()
}
