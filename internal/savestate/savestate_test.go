package savestate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	payload := []byte("pretend bus gob stream")
	wrapped := Wrap(payload)

	got, err := Unwrap(wrapped)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestUnwrapRejectsShortData(t *testing.T) {
	_, err := Unwrap([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrStateCorrupt)
}

func TestUnwrapRejectsBadMagic(t *testing.T) {
	wrapped := Wrap([]byte("hello"))
	wrapped[0] ^= 0xFF
	_, err := Unwrap(wrapped)
	assert.ErrorIs(t, err, ErrStateCorrupt)
}

func TestUnwrapRejectsVersionMismatch(t *testing.T) {
	wrapped := Wrap([]byte("hello"))
	wrapped[4] = 0xFF // version is bytes [4:6]
	_, err := Unwrap(wrapped)
	assert.ErrorIs(t, err, ErrStateVersionMismatch)
}

func TestUnwrapRejectsCorruptPayload(t *testing.T) {
	wrapped := Wrap([]byte("hello world"))
	wrapped[len(wrapped)-1] ^= 0xFF
	_, err := Unwrap(wrapped)
	assert.ErrorIs(t, err, ErrStateCorrupt)
}
