package grpc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	// Arrange
	err := NewError(CodeNotFound, "user 123 not found")

	// Act
	msg := err.Error()

	// Assert
	assert.Equal(t, "grpc: NOT_FOUND: user 123 not found", msg)
}

func TestErrorfFormatsMessage(t *testing.T) {
	// Arrange / Act
	err := Errorf(CodeInvalidArgument, "field %q is required", "name")

	// Assert
	assert.Equal(t, CodeInvalidArgument, err.Code)
	assert.Equal(t, `field "name" is required`, err.Message)
}

func TestAsErrorPassesThroughGrpcError(t *testing.T) {
	// Arrange
	grpcErr := NewError(CodeAborted, "retry later")

	// Act
	got := asError(grpcErr)

	// Assert
	require.Same(t, grpcErr, got)
}

func TestAsErrorFoldsForeignErrorToUnknown(t *testing.T) {
	// Arrange
	foreign := errors.New("boom")

	// Act
	got := asError(foreign)

	// Assert
	require.NotNil(t, got)
	assert.Equal(t, CodeUnknown, got.Code)
	assert.Equal(t, "boom", got.Message)
}

func TestErrUnimplementedNamesTheMethod(t *testing.T) {
	// Arrange / Act
	err := errUnimplemented("/no.such/Method")

	// Assert
	assert.Equal(t, CodeUnimplemented, err.Code)
	assert.Contains(t, err.Message, "/no.such/Method")
}
