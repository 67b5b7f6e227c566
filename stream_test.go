package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamingRequestDrain(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := NewStreamingRequest(func(send func(int)) error {
		send(1)
		send(2)
		send(3)
		return nil
	})

	// Act
	var got []int
	for {
		v, ok, err := s.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v)
	}

	// Assert
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestStreamingRequestPropagatesProducerError(t *testing.T) {
	// Arrange
	ctx := context.Background()
	boom := NewError(CodeInternal, "boom")
	s := NewStreamingRequest(func(send func(int)) error {
		send(1)
		return boom
	})

	// Act
	v, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok, err = s.Next(ctx)

	// Assert
	assert.False(t, ok)
	assert.Equal(t, boom, err)
}

func TestStreamingRequestNextRespectsCancellation(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStreamingRequest(func(send func(int)) error {
		<-ctx.Done()
		return ctx.Err()
	})
	cancel()

	// Act
	_, ok, err := s.Next(ctx)

	// Assert
	assert.False(t, ok)
	require.Error(t, err)
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, CodeCanceled, gerr.Code)
}

func TestCollapseToOneRejectsZeroMessages(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := NewStreamingRequest(func(send func(int)) error { return nil })

	// Act
	_, err := collapseToOne(ctx, s)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got none")
}

func TestCollapseToOneRejectsMultipleMessages(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := NewStreamingRequest(func(send func(int)) error {
		send(1)
		send(2)
		return nil
	})

	// Act
	_, err := collapseToOne(ctx, s)

	// Assert
	require.Error(t, err)
	assert.Equal(t, "expected exactly one request message", asError(err).Message)
}

func TestCollapseToOneAcceptsExactlyOne(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := NewStreamingRequest(func(send func(int)) error {
		send(42)
		return nil
	})

	// Act
	v, err := collapseToOne(ctx, s)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestStreamingResponseInitialMetadataBeforeFirstItem(t *testing.T) {
	// Arrange
	ctx := context.Background()
	initial := Metadata{{Name: "x-initial", Value: "yes"}}
	resp := NewStreamingResponse[int](initial, func(send func(int)) (Metadata, error) {
		send(7)
		return Metadata{{Name: "x-trailer", Value: "done"}}, nil
	})

	// Act
	got := resp.InitialMetadata()
	v, ok, err := resp.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = resp.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	trailer := resp.TrailerMetadata()

	// Assert
	assert.Equal(t, initial, got)
	assert.Equal(t, 7, v)
	tv, ok := trailer.Get("x-trailer")
	require.True(t, ok)
	assert.Equal(t, "done", tv)
}

func TestDeferredStreamingResponseResolvesOnce(t *testing.T) {
	// Arrange
	ctx := context.Background()
	calls := 0
	resp := NewDeferredStreamingResponse(func() *StreamingResponse[int] {
		calls++
		return NewStreamingResponse[int](Metadata{{Name: "x-a", Value: "1"}}, func(send func(int)) (Metadata, error) {
			send(9)
			return nil, nil
		})
	})

	// Act
	got1 := resp.InitialMetadata()
	v, ok, err := resp.Next(ctx)
	got2 := resp.InitialMetadata()

	// Assert
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 9, v)
	assert.Equal(t, got1, got2)
	assert.Equal(t, 1, calls)
}

func TestErrStreamFailsImmediately(t *testing.T) {
	// Arrange
	ctx := context.Background()
	want := NewError(CodeUnimplemented, "nope")

	// Act
	resp := errStream[int](want)
	_, ok, err := resp.Next(ctx)

	// Assert
	assert.False(t, ok)
	assert.Equal(t, want, err)
}

func TestSingleResponseIntoStreamCarriesTrailer(t *testing.T) {
	// Arrange
	ctx := context.Background()
	resp := NewSingleResponse("hi").WithTrailer(Metadata{{Name: "x-t", Value: "v"}})

	// Act
	stream := resp.IntoStream()
	v, ok, err := stream.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = stream.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// Assert
	assert.Equal(t, "hi", v)
	tv, ok := stream.TrailerMetadata().Get("x-t")
	require.True(t, ok)
	assert.Equal(t, "v", tv)
}

func TestFailedResponseIntoStreamFailsImmediately(t *testing.T) {
	// Arrange
	ctx := context.Background()
	want := NewError(CodePermissionDenied, "no")

	// Act
	stream := FailedResponse[string](want).IntoStream()
	_, ok, err := stream.Next(ctx)

	// Assert
	assert.False(t, ok)
	assert.Equal(t, want, err)
}

func TestMapResponseStreamAppliesFunction(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	in := NewStreamingResponse[int](nil, func(send func(int)) (Metadata, error) {
		send(1)
		send(2)
		return nil, nil
	})

	// Act
	out := mapResponseStream(ctx, in, func(v int) (string, error) {
		if v == 1 {
			return "one", nil
		}
		return "two", nil
	})

	var got []string
	for {
		v, ok, err := out.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v)
	}

	// Assert
	assert.Equal(t, []string{"one", "two"}, got)
}
