package sbench

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
		wantOp   string
		wantMsg  string
		checkFn  func(error) bool
	}{
		{
			name:     "Invalid Block Size",
			err:      ErrInvalidBlockSize,
			wantKind: KindConfiguration,
			wantOp:   "BlockSize",
			wantMsg:  "invalid block size",
			checkFn:  IsConfigurationError,
		},
		{
			name:     "Invalid Alignment",
			err:      ErrInvalidAlignment,
			wantKind: KindConfiguration,
			wantOp:   "Alignment",
			wantMsg:  "alignment must be greater than one",
			checkFn:  IsConfigurationError,
		},
		{
			name:     "Platform",
			err:      NewPlatformError("Synchronize", "kernel panicked", errors.New("boom")),
			wantKind: KindPlatform,
			wantOp:   "Synchronize",
			wantMsg:  "kernel panicked",
			checkFn:  IsPlatformError,
		},
		{
			name:     "Cache Conflict",
			err:      NewCacheConflictError("CheckCacheConflicts", "k-stride offsets"),
			wantKind: KindCacheConflict,
			wantOp:   "CheckCacheConflicts",
			wantMsg:  "k-stride offsets",
			checkFn:  IsCacheConflict,
		},
		{
			name:     "Lifecycle",
			err:      NewUsageError("Lifecycle", "run before prerun"),
			wantKind: KindUsage,
			wantOp:   "Lifecycle",
			wantMsg:  "run before prerun",
			checkFn:  IsUsageError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e *Error
			require.True(t, errors.As(tt.err, &e), "expected *Error, got %T", tt.err)
			assert.Equal(t, tt.wantKind, e.Kind)
			assert.Equal(t, tt.wantOp, e.Op)
			assert.Equal(t, tt.wantMsg, e.Message)
			assert.True(t, tt.checkFn(tt.err))

			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, tt.checkFn(wrapped), "predicate must see through wrapping")
		})
	}
}

func TestErrorIsMatchesSentinel(t *testing.T) {
	err := &Error{Kind: KindUsage, Op: "Lifecycle", Message: "run before prerun"}
	assert.ErrorIs(t, err, ErrLifecycle)
	assert.NotErrorIs(t, err, ErrInvalidBlockSize)
}

func TestErrorMessage(t *testing.T) {
	err := NewPlatformError("Prefetch", "madvise failed", errors.New("EINVAL"))
	assert.Equal(t, "sbench Platform error in Prefetch: madvise failed (caused by: EINVAL)", err.Error())
	assert.False(t, IsConfigurationError(err))
	assert.False(t, IsConfigurationError(errors.New("plain")))
}
