package storage

import (
	"errors"
	"fmt"
	"testing"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
)

// TestLevelSatisfies_Table tests the level ordering.
func TestLevelSatisfies_Table(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		held, want Level
		ok         bool
	}{
		{LevelClosed, LevelClosed, true},
		{LevelClosed, LevelReadOnly, false},
		{LevelReadOnly, LevelReadOnly, true},
		{LevelReadOnly, LevelReadWrite, false},
		{LevelReadWrite, LevelReadOnly, true},
		{LevelReadWrite, LevelReadWrite, true},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.ok, tc.held.Satisfies(tc.want), "%s satisfies %s", tc.held, tc.want)
	}

	assert.Equal(t, "read-write", LevelReadWrite.String())
	assert.Equal(t, "unknown", Level(9).String())
}

// TestErrors_Success tests the classification of the error taxonomy.
func TestErrors_Success(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("(medium) read failed: %w: %w", ErrProviderFailure, errors.New("eio"))

	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(fmt.Errorf("(forward) %w", ErrOutOfRange)))
	assert.False(t, IsRetryable(errors.New("plain")))

	assert.ErrorIs(t, wrapped, ErrProviderFailure)
	assert.NotErrorIs(t, fmt.Errorf("%w", ErrBusy), ErrInvalidState)

	assert.Equal(t, platformerrors.CodeForbidden, platformerrors.GetCode(ErrAccessDenied))
	assert.Equal(t, platformerrors.CodeInvalidInput, platformerrors.GetCode(ErrMisaligned))
}

// TestExtentEnd_Success tests the end offset of an extent.
func TestExtentEnd_Success(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(1536), Extent{Offset: 1024, Length: 512}.End())
	assert.Equal(t, "deallocated", ProvisionDeallocated.String())
}
