package grpc

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bridgeEchoService() ServerServiceDefinition {
	b := NewServiceBuilder("pkg.Service")
	b.Add("Method", NewUnaryHandler("pkg.Service/Method", identityMarshaller[echoMsg](), identityMarshaller[echoMsg](),
		func(_ context.Context, _ RequestOptions, req echoMsg) *SingleResponse[echoMsg] {
			return NewSingleResponse(echoMsg{N: req.N + 1})
		}))
	b.Add("Fail", NewUnaryHandler("pkg.Service/Fail", identityMarshaller[echoMsg](), identityMarshaller[echoMsg](),
		func(_ context.Context, _ RequestOptions, _ echoMsg) *SingleResponse[echoMsg] {
			return FailedResponse[echoMsg](NewError(CodeNotFound, "missing"))
		}))
	return b.Build()
}

func newFramedBody(t *testing.T, msg echoMsg) []byte {
	t.Helper()
	codec := identityMarshaller[echoMsg]()
	payload, err := codec.Write(msg)
	require.NoError(t, err)
	return writeGrpcFrame(nil, payload)
}

func TestBridgeServesSuccessfulUnaryCall(t *testing.T) {
	// Arrange
	bridge := NewBridge(bridgeEchoService(), InlineCallStarter{}, nil)
	body := newFramedBody(t, echoMsg{N: 41})
	req := httptest.NewRequest("POST", "/pkg.Service/Method", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	// Act
	bridge.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, "0", rec.Header().Get(http.TrailerPrefix+"Grpc-Status"))
	assert.Equal(t, "application/grpc", rec.Header().Get("Content-Type"))
	var dec frameDecoder
	payloads, err := dec.push(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	out, err := identityMarshaller[echoMsg]().Read(payloads[0])
	require.NoError(t, err)
	assert.Equal(t, 42, out.N)
}

func TestBridgeMissingPathIsRejectedWithGrpcStatus(t *testing.T) {
	// Arrange
	bridge := NewBridge(bridgeEchoService(), InlineCallStarter{}, nil)
	req := httptest.NewRequest("POST", "/", nil)
	req.URL.Path = ""
	rec := httptest.NewRecorder()

	// Act
	bridge.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, "13", rec.Header().Get("Grpc-Status"))
	assert.Empty(t, rec.Body.Bytes())
}

func TestBridgeUnknownMethodReturnsUnimplementedStatus(t *testing.T) {
	// Arrange
	bridge := NewBridge(bridgeEchoService(), InlineCallStarter{}, nil)
	req := httptest.NewRequest("POST", "/pkg.Service/DoesNotExist", bytes.NewReader(nil))
	rec := httptest.NewRecorder()

	// Act
	bridge.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, "12", rec.Header().Get("Grpc-Status"))
	assert.Empty(t, rec.Body.Bytes())
}

func TestBridgeRejectsReservedInitialMetadataKey(t *testing.T) {
	// Arrange
	b := NewServiceBuilder("pkg.Service")
	b.Add("Method", NewServerStreamHandler("pkg.Service/Method", identityMarshaller[echoMsg](), identityMarshaller[echoMsg](),
		func(_ context.Context, _ RequestOptions, req echoMsg) *StreamingResponse[echoMsg] {
			bad := Metadata{{Name: "grpc-status", Value: "0"}}
			return NewStreamingResponse[echoMsg](bad, func(send func(echoMsg)) (Metadata, error) {
				send(req)
				return nil, nil
			})
		}))
	bridge := NewBridge(b.Build(), InlineCallStarter{}, nil)
	body := newFramedBody(t, echoMsg{N: 1})
	req := httptest.NewRequest("POST", "/pkg.Service/Method", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	// Act
	bridge.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, "13", rec.Header().Get("Grpc-Status"))
	assert.Contains(t, rec.Header().Get("Grpc-Message"), "reserved")
	assert.Empty(t, rec.Body.Bytes())
}

func TestBridgeHandlerErrorSurfacesAsTrailer(t *testing.T) {
	// Arrange
	bridge := NewBridge(bridgeEchoService(), InlineCallStarter{}, nil)
	body := newFramedBody(t, echoMsg{N: 1})
	req := httptest.NewRequest("POST", "/pkg.Service/Fail", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	// Act
	bridge.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, "5", rec.Header().Get("Grpc-Status"))
	assert.Contains(t, rec.Header().Get("Grpc-Message"), "missing")
	assert.Empty(t, rec.Body.Bytes())
}
