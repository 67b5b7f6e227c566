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
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Bridge is the top-level component: an http.Handler that turns one
// incoming HTTP/2 request into one gRPC call, dispatched through a
// CallStarter against a ServerServiceDefinition, and turns the handler's
// response stream back into a well-formed gRPC-over-HTTP2 response.
//
// Bridge never buffers a response in full; each payload reaches the
// transport as soon as the handler produces it, flushed immediately so
// backpressure is inherited entirely from the transport's own flow
// control.
type Bridge struct {
	service  ServerServiceDefinition
	executor CallStarter
	logger   *zap.Logger
	pool     *bufferPool
}

// NewBridge builds a Bridge over a sealed service definition. A nil
// executor defaults to InlineCallStarter{}; a nil logger defaults to
// zap.NewNop(), matching Go convention of never requiring a logger.
func NewBridge(service ServerServiceDefinition, executor CallStarter, logger *zap.Logger) *Bridge {
	if executor == nil {
		executor = InlineCallStarter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{service: service, executor: executor, logger: logger, pool: newBufferPool()}
}

// ServeHTTP implements http.Handler.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path := r.URL.Path
	if path == "" {
		writeTrailersOnly(w, CodeInternal, "no :path header")
		return
	}

	metadata, err := FromHeaders(r.Header)
	if err != nil {
		writeTrailersOnly(w, CodeInternal, "decode metadata error")
		return
	}

	opts := RequestOptions{
		Metadata: metadata,
		Spec:     Spec{Procedure: path},
		Peer:     Peer{Addr: r.RemoteAddr},
	}

	reqStream := newBodyRequestStream(ctx, r.Body)
	resp := b.executor.Start(ctx, &b.service, path, opts, reqStream)

	// Initial metadata is resolved before we commit to any wire output,
	// but it never itself signals failure -- only the first item does.
	initial := resp.InitialMetadata()
	firstVal, firstOK, firstErr := resp.Next(ctx)
	if firstErr != nil {
		gerr := asError(firstErr)
		b.logger.Debug("grpc call failed before first response item",
			zap.String("procedure", path), zap.Int32("grpc_status", int32(gerr.Code)))
		writeTrailersOnly(w, gerr.Code, gerr.Message)
		return
	}

	if err := writeInitialHeaders(w, initial); err != nil {
		gerr := asError(err)
		b.logger.Debug("grpc call produced invalid initial metadata",
			zap.String("procedure", path), zap.Int32("grpc_status", int32(gerr.Code)))
		writeTrailersOnly(w, gerr.Code, gerr.Message)
		return
	}
	flusher, canFlush := w.(http.Flusher)

	writeFrame := func(payload []byte) {
		buf := b.pool.Frame(payload)
		_, _ = w.Write(buf.Bytes())
		b.pool.Put(buf)
		if canFlush {
			flusher.Flush()
		}
	}

	if firstOK {
		writeFrame(firstVal)
	}

	var streamErr error
	for firstOK {
		v, ok, err := resp.Next(ctx)
		if err != nil {
			streamErr = err
			break
		}
		if !ok {
			break
		}
		writeFrame(v)
	}

	trailer := resp.TrailerMetadata()
	if streamErr != nil {
		gerr := asError(streamErr)
		b.logger.Debug("grpc call failed mid-stream",
			zap.String("procedure", path), zap.Int32("grpc_status", int32(gerr.Code)))
		writeTrailers(w, gerr.Code, gerr.Message, trailer)
		return
	}
	writeTrailers(w, CodeOK, "", trailer)
}

// newBodyRequestStream wraps an HTTP request body in the frame decoder,
// producing a lazy sequence of payload buffers. Reading is abandoned (the
// producer goroutine exits) once ctx is canceled, which is how RST_STREAM
// and connection loss propagate as cancellation to the handler.
func newBodyRequestStream(ctx context.Context, body io.ReadCloser) *StreamingRequest[[]byte] {
	return NewStreamingRequest(func(send func([]byte)) error {
		defer body.Close()
		var dec frameDecoder
		chunk := make([]byte, 32*1024)
		for {
			select {
			case <-ctx.Done():
				return NewError(CodeCanceled, ctx.Err().Error())
			default:
			}
			n, err := body.Read(chunk)
			if n > 0 {
				payloads, decErr := dec.push(chunk[:n])
				for _, p := range payloads {
					send(p)
				}
				if decErr != nil {
					return decErr
				}
			}
			if err != nil {
				if err == io.EOF {
					return dec.finish()
				}
				return NewError(CodeCanceled, err.Error())
			}
		}
	})
}

// writeInitialHeaders commits the 200 and the handler's initial metadata.
// A handler that set a reserved key in its initial metadata is reported as
// an error before anything is written, so the caller can still fall back
// to a trailers-only failure instead of a falsely-successful response.
func writeInitialHeaders(w http.ResponseWriter, initial Metadata) error {
	hdrs, err := IntoHeaders(initial)
	if err != nil {
		return err
	}
	h := w.Header()
	h.Set("Content-Type", "application/grpc")
	for k, vs := range hdrs {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

// writeTrailersOnly emits a single HEADERS block carrying the gRPC status
// directly (no body, no separate trailer block) -- the trailers-only wire
// shape for calls that fail before any data frame is committed.
func writeTrailersOnly(w http.ResponseWriter, code Code, message string) {
	h := w.Header()
	h.Set("Content-Type", "application/grpc")
	h.Set("Grpc-Status", strconv.Itoa(int(code)))
	if message != "" {
		h.Set("Grpc-Message", percentEncodeGrpcMessage(message))
	}
	w.WriteHeader(http.StatusOK)
}

// writeTrailers emits the terminal gRPC status as HTTP trailers, once,
// after the data section -- the only place grpc-status is ever set on a
// stream that already sent headers and (possibly) data frames.
func writeTrailers(w http.ResponseWriter, code Code, message string, trailer Metadata) {
	h := w.Header()
	h.Set(http.TrailerPrefix+"Grpc-Status", strconv.Itoa(int(code)))
	if message != "" {
		h.Set(http.TrailerPrefix+"Grpc-Message", percentEncodeGrpcMessage(message))
	}
	hdrs, err := IntoHeaders(trailer)
	if err != nil {
		// The handler tried to set a reserved trailer key; that's
		// Error.InvalidMetadata, which wins over whatever status the
		// handler itself reported.
		h.Set(http.TrailerPrefix+"Grpc-Status", strconv.Itoa(int(CodeInternal)))
		h.Set(http.TrailerPrefix+"Grpc-Message", percentEncodeGrpcMessage(err.Error()))
		return
	}
	for k, vs := range hdrs {
		for _, v := range vs {
			h.Add(http.TrailerPrefix+k, v)
		}
	}
}

// percentEncodeGrpcMessage encodes grpc-message per the gRPC wire spec:
// every byte outside the printable, non-'%' ASCII range becomes %XX.
func percentEncodeGrpcMessage(s string) string {
	const hex = "0123456789ABCDEF"
	needsEscape := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7e || c == '%' {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return s
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7e || c == '%' {
			out = append(out, '%', hex[c>>4], hex[c&0xf])
		} else {
			out = append(out, c)
		}
	}
	return string(out)
}
