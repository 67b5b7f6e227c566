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
	"encoding/binary"
)

// Frame layout: [compression flag: 1 byte][length: 4 bytes big-endian][payload].
const (
	frameHeaderLength = 5
	frameFlagOffset   = 0
	frameLengthOffset = 1

	// maxFrameLength bounds a single gRPC message. 4MiB matches the
	// default grpc-go max receive size.
	maxFrameLength = 4 << 20
)

// writeGrpcFrame appends the 5-byte header and payload for one message to
// dst, returning the extended slice. No coalescing across messages is
// attempted here -- the transport merges DATA frames as it sees fit.
func writeGrpcFrame(dst []byte, payload []byte) []byte {
	header := [frameHeaderLength]byte{}
	header[frameFlagOffset] = 0
	binary.BigEndian.PutUint32(header[frameLengthOffset:], uint32(len(payload)))
	dst = append(dst, header[:]...)
	dst = append(dst, payload...)
	return dst
}

// frameDecoder accumulates arbitrarily-chunked bytes and peels off complete
// gRPC frames as they become available. It is not safe for concurrent use;
// each HTTP/2 request gets its own decoder.
type frameDecoder struct {
	buf []byte
}

// push appends one chunk of input and returns every complete payload that
// can now be extracted, in order. The decoder retains any trailing partial
// frame for the next call.
func (d *frameDecoder) push(chunk []byte) ([][]byte, error) {
	d.buf = append(d.buf, chunk...)

	var payloads [][]byte
	for {
		if len(d.buf) < frameHeaderLength {
			break
		}
		if flag := d.buf[frameFlagOffset]; flag != 0 {
			return payloads, errProtocol("unsupported compression flag %d", flag)
		}
		length := binary.BigEndian.Uint32(d.buf[frameLengthOffset:frameHeaderLength])
		if length > maxFrameLength {
			return payloads, errProtocol("frame length %d exceeds maximum %d", length, maxFrameLength)
		}
		total := frameHeaderLength + int(length)
		if len(d.buf) < total {
			break
		}
		payload := make([]byte, length)
		copy(payload, d.buf[frameHeaderLength:total])
		payloads = append(payloads, payload)
		d.buf = d.buf[total:]
	}
	return payloads, nil
}

// finish is called at end-of-input. A nonempty buffered remainder means the
// stream ended mid-frame, which is a protocol error.
func (d *frameDecoder) finish() error {
	if len(d.buf) != 0 {
		return errProtocol("stream ended with %d bytes of a partial gRPC frame", len(d.buf))
	}
	return nil
}
