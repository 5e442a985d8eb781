package cip

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusErrorIs(t *testing.T) {
	err := fmt.Errorf("open: %w", ConnErr(ExtOwnershipConflict))

	assert.True(t, errors.Is(err, &StatusError{Status: StatusConnectionFailure}))
	assert.True(t, errors.Is(err, ConnErr(ExtOwnershipConflict)))
	assert.False(t, errors.Is(err, ConnErr(ExtNonListenOnlyNotOpened)))
	assert.False(t, errors.Is(err, Err(StatusTooMuchData)))
}

func TestErrSuccessIsNil(t *testing.T) {
	assert.NoError(t, Err(StatusSuccess))
	assert.Equal(t, StatusSuccess, StatusOf(nil))
	assert.Equal(t, StatusNotEnoughData, StatusOf(Err(StatusNotEnoughData)))
	assert.Equal(t, StatusDeviceStateConflict, StatusOf(errors.New("boom")))
}

func TestStringEncoding(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"empty", "", []byte{0, 0}},
		{"even", "ab", []byte{2, 0, 'a', 'b'}},
		{"odd is padded", "abc", []byte{3, 0, 'a', 'b', 'c', 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AppendString(nil, tt.in)
			assert.Equal(t, tt.want, got)

			back, err := DecodeString(got)
			require.NoError(t, err)
			assert.Equal(t, tt.in, back)
		})
	}
}

func TestDecodeStringTruncated(t *testing.T) {
	_, err := DecodeString([]byte{5, 0, 'a'})
	assert.Error(t, err)

	_, err = DecodeString([]byte{1})
	assert.Error(t, err)
}

func TestEventEnds(t *testing.T) {
	assert.False(t, EventStarted.Ends())
	assert.True(t, EventTimedOut.Ends())
	assert.True(t, EventClosed.Ends())
	assert.Equal(t, "TIMED_OUT", EventTimedOut.String())
}
