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
	"encoding/json"

	"google.golang.org/protobuf/proto"
)

// Marshaller is the per-method typed codec the dispatcher uses to cross
// the boundary between wire bytes and a handler's request/response type.
// Serialization itself is an external collaborator of this package; only
// the interface it must satisfy lives here.
type Marshaller[T any] interface {
	Read(data []byte) (T, error)
	Write(msg T) ([]byte, error)
}

// ProtoMarshaller adapts google.golang.org/protobuf/proto to Marshaller
// for any generated message type. This is the marshaller production
// services should register methods with.
type ProtoMarshaller[T proto.Message] struct {
	// New constructs a zero-value T to unmarshal into.
	New func() T
}

func (p ProtoMarshaller[T]) Read(data []byte) (T, error) {
	msg := p.New()
	if err := proto.Unmarshal(data, msg); err != nil {
		var zero T
		return zero, errProtocol("proto unmarshal: %v", err)
	}
	return msg, nil
}

func (p ProtoMarshaller[T]) Write(msg T) ([]byte, error) {
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, errProtocol("proto marshal: %v", err)
	}
	return data, nil
}

// JSONMarshaller is a stand-in codec for message types with no compiled
// .proto descriptor available to this module (the bundled interop
// service). Serialization is explicitly out of scope for this package per
// its design, so this exists purely to exercise the dispatcher end-to-end
// in tests and the interop binary -- production services register
// ProtoMarshaller instead.
type JSONMarshaller[T any] struct {
	New func() T
}

func (j JSONMarshaller[T]) Read(data []byte) (T, error) {
	msg := j.New()
	if len(data) == 0 {
		return msg, nil
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		var zero T
		return zero, errProtocol("json unmarshal: %v", err)
	}
	return msg, nil
}

func (j JSONMarshaller[T]) Write(msg T) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errProtocol("json marshal: %v", err)
	}
	return data, nil
}
