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
	"bytes"
	"encoding/binary"
	"sync"
)

const (
	// initialBufferSize covers the 5-byte frame header plus a handful of
	// small response messages (status pings, short echoes) without a
	// reallocation; most interop traffic fits well under this.
	initialBufferSize = frameHeaderLength + 256

	// maxRecycleBufferSize bounds what's worth recycling: a buffer that
	// grew to hold a near-maxFrameLength message shouldn't be kept around
	// to serve every subsequent small frame. Sized at twice maxFrameLength
	// so a single max-size message doesn't itself get discarded.
	maxRecycleBufferSize = 2 * maxFrameLength
)

// bufferPool recycles the scratch buffers the bridge uses to assemble
// outbound gRPC frames, so a busy call doesn't allocate one per message.
// Frame writes the 5-byte header and payload directly into a pooled
// buffer instead of handing the bridge a throwaway slice to copy in.
type bufferPool struct {
	sync.Pool
}

func newBufferPool() *bufferPool {
	return &bufferPool{
		Pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialBufferSize))
			},
		},
	}
}

// Frame borrows a buffer from the pool, resets it, and writes the framed
// form of payload (header + body) into it. The caller must return the
// buffer via Put once it's done writing it to the wire.
func (b *bufferPool) Frame(payload []byte) *bytes.Buffer {
	buf := b.Pool.Get().(*bytes.Buffer)
	buf.Reset()
	buf.Grow(frameHeaderLength + len(payload))
	var header [frameHeaderLength]byte
	header[frameFlagOffset] = 0
	binary.BigEndian.PutUint32(header[frameLengthOffset:], uint32(len(payload)))
	buf.Write(header[:])
	buf.Write(payload)
	return buf
}

func (b *bufferPool) Put(buffer *bytes.Buffer) {
	if buffer.Cap() > maxRecycleBufferSize {
		return
	}
	buffer.Reset()
	b.Pool.Put(buffer)
}
