package interop

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	grpc "github.com/shaneutt/grpc-go"
)

// These tests drive the real TestService end to end through Bridge, the
// same wire path a standard interop client exercises, covering each
// scenario the test service's canonical suite enumerates.

func newTestBridge() *grpc.Bridge {
	return grpc.NewBridge(NewServiceDefinition(TestService{}), grpc.InlineCallStarter{}, nil)
}

func appendFrame(dst, payload []byte) []byte {
	var header [5]byte
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	dst = append(dst, header[:]...)
	dst = append(dst, payload...)
	return dst
}

func jsonFrame(t *testing.T, v any) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return appendFrame(nil, body)
}

func readFrames(t *testing.T, body []byte) [][]byte {
	t.Helper()
	var out [][]byte
	for len(body) > 0 {
		require.GreaterOrEqual(t, len(body), 5)
		n := binary.BigEndian.Uint32(body[1:5])
		require.GreaterOrEqual(t, len(body), 5+int(n))
		out = append(out, body[5:5+int(n)])
		body = body[5+int(n):]
	}
	return out
}

func doCall(t *testing.T, bridge *grpc.Bridge, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/grpc")
	rec := httptest.NewRecorder()
	bridge.ServeHTTP(rec, req)
	return rec
}

func TestEmptyCallReturnsZeroLengthPayload(t *testing.T) {
	// Arrange
	bridge := newTestBridge()
	// A protobuf Empty always marshals to zero bytes; the request frame
	// carries a zero-length payload and the response must too.
	body := appendFrame(nil, nil)

	// Act
	rec := doCall(t, bridge, "/"+ServiceName+"/EmptyCall", body)

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/grpc", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0, 0, 0, 0, 0}, rec.Body.Bytes())
	assert.Equal(t, "0", rec.Header().Get(http.TrailerPrefix+"Grpc-Status"))
}

func TestUnaryCallEchoesSizedDictionaryPayload(t *testing.T) {
	// Arrange
	bridge := newTestBridge()
	body := jsonFrame(t, SimpleRequest{ResponseSize: 58})
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVabcdefghijklmnoqprstuvwxyz0123456789"
	want := make([]byte, 58)
	for i := range want {
		want[i] = alphabet[i%len(alphabet)]
	}

	// Act
	rec := doCall(t, bridge, "/"+ServiceName+"/UnaryCall", body)

	// Assert
	require.Equal(t, "0", rec.Header().Get(http.TrailerPrefix+"Grpc-Status"))
	frames := readFrames(t, rec.Body.Bytes())
	require.Len(t, frames, 1)
	var resp SimpleResponse
	require.NoError(t, json.Unmarshal(frames[0], &resp))
	assert.Equal(t, want, resp.Payload.Body)
}

func TestUnaryCallForcedFailureReportsRequestedStatus(t *testing.T) {
	// Arrange
	bridge := newTestBridge()
	body := jsonFrame(t, SimpleRequest{ResponseStatus: &EchoStatus{Code: 5, Message: "nope"}})

	// Act
	rec := doCall(t, bridge, "/"+ServiceName+"/UnaryCall", body)

	// Assert
	assert.Empty(t, rec.Body.Bytes())
	assert.Equal(t, "5", rec.Header().Get("Grpc-Status"))
	assert.Equal(t, "nope", rec.Header().Get("Grpc-Message"))
}

func TestStreamingOutputCallEmitsOneFramePerRequestedSize(t *testing.T) {
	// Arrange
	bridge := newTestBridge()
	body := jsonFrame(t, StreamingOutputCallRequest{
		ResponseParameters: []ResponseParameters{{Size: 10}, {Size: 20}, {Size: 30}},
	})

	// Act
	rec := doCall(t, bridge, "/"+ServiceName+"/StreamingOutputCall", body)

	// Assert
	frames := readFrames(t, rec.Body.Bytes())
	require.Len(t, frames, 3)
	wantSizes := []int{10, 20, 30}
	for i, f := range frames {
		var resp StreamingOutputCallResponse
		require.NoError(t, json.Unmarshal(f, &resp))
		assert.Len(t, resp.Payload.Body, wantSizes[i])
	}
	assert.Equal(t, "0", rec.Header().Get(http.TrailerPrefix+"Grpc-Status"))
}

func TestStreamingInputCallAggregatesPayloadSizes(t *testing.T) {
	// Arrange
	bridge := newTestBridge()
	var body []byte
	for _, n := range []int{7, 11, 13} {
		body = append(body, jsonFrame(t, StreamingInputCallRequest{Payload: Payload{Body: make([]byte, n)}})...)
	}

	// Act
	rec := doCall(t, bridge, "/"+ServiceName+"/StreamingInputCall", body)

	// Assert
	frames := readFrames(t, rec.Body.Bytes())
	require.Len(t, frames, 1)
	var resp StreamingInputCallResponse
	require.NoError(t, json.Unmarshal(frames[0], &resp))
	assert.EqualValues(t, 31, resp.AggregatedPayloadSize)
	assert.Equal(t, "0", rec.Header().Get(http.TrailerPrefix+"Grpc-Status"))
}

func TestFullDuplexCallFailsMidStreamAfterEarlierResponses(t *testing.T) {
	// Arrange
	bridge := newTestBridge()
	var body []byte
	body = append(body, jsonFrame(t, StreamingOutputCallRequest{
		ResponseParameters: []ResponseParameters{{Size: 4}},
	})...)
	body = append(body, jsonFrame(t, StreamingOutputCallRequest{
		ResponseStatus: &EchoStatus{Code: 13, Message: "boom"},
	})...)

	// Act
	rec := doCall(t, bridge, "/"+ServiceName+"/FullDuplexCall", body)

	// Assert
	frames := readFrames(t, rec.Body.Bytes())
	require.Len(t, frames, 1)
	var resp StreamingOutputCallResponse
	require.NoError(t, json.Unmarshal(frames[0], &resp))
	assert.Len(t, resp.Payload.Body, 4)
	assert.Equal(t, "13", rec.Header().Get(http.TrailerPrefix+"Grpc-Status"))
	assert.Equal(t, "boom", rec.Header().Get(http.TrailerPrefix+"Grpc-Message"))
}

func TestUnknownMethodReturnsUnimplementedStatus(t *testing.T) {
	// Arrange
	bridge := newTestBridge()

	// Act
	rec := doCall(t, bridge, "/no.such.Service/Method", nil)

	// Assert
	assert.Empty(t, rec.Body.Bytes())
	assert.Equal(t, "12", rec.Header().Get("Grpc-Status"))
	assert.Contains(t, rec.Header().Get("Grpc-Message"), "Method")
}
