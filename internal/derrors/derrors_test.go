package derrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootMissingError(t *testing.T) {
	err := NewRootMissingError("/nope")
	assert.Equal(t, CodeRootMissing, err.Code())
	assert.Contains(t, err.Error(), "/nope")
	assert.True(t, HasCode(err, CodeRootMissing))
}

func TestJournalErrors(t *testing.T) {
	notActive := NewJournalNotActiveError("C:\\")
	assert.Equal(t, CodeJournalNotActive, notActive.Code())
	assert.Equal(t, "C:\\", notActive.Volume)

	mismatch := NewJournalIDMismatchError("/", 7, 99)
	assert.Equal(t, CodeJournalIDMismatch, mismatch.Code())
	assert.Contains(t, mismatch.Error(), "7")
	assert.Contains(t, mismatch.Error(), "99")

	cause := errors.New("device gone")
	readErr := NewJournalReadError("/", cause)
	assert.Equal(t, CodeJournalReadFailed, readErr.Code())
	assert.ErrorIs(t, readErr, cause)
}

func TestCacheErrors(t *testing.T) {
	assert.Equal(t, CodeCorrupt, NewCorruptError("/p", "bad").Code())
	assert.Equal(t, CodeFormatMismatch, NewFormatMismatchError("/p", "bad").Code())

	trunc := NewTruncatedError("/p", 128)
	assert.Equal(t, CodeTruncated, trunc.Code())
	assert.Contains(t, trunc.Error(), "128")
}

func TestHasCode_Wrapped(t *testing.T) {
	err := fmt.Errorf("context: %w", NewRootMissingError("/x"))
	assert.True(t, HasCode(err, CodeRootMissing))
	assert.False(t, HasCode(err, CodeCorrupt))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.False(t, HasCode(errors.New("plain"), CodeCorrupt))
	assert.Equal(t, "", CodeOf(nil))
}
