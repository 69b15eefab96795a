package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractReturnsFirstCompleteDraw(t *testing.T) {
	calls := 0
	src := SourceFunc(func(ctx context.Context) ([]int, error) {
		calls++
		return []int{1, 23, 45, 67, 85}, nil
	})

	e := New(src, 3, 0, nil)
	numbers, err := e.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 23, 45, 67, 85}, numbers)
	assert.Equal(t, 1, calls)
}

func TestExtractRetriesUntilSuccess(t *testing.T) {
	calls := 0
	src := SourceFunc(func(ctx context.Context) ([]int, error) {
		calls++
		if calls < 3 {
			return nil, extractErr(KindNetwork, "transient")
		}
		return []int{1, 2, 3, 4, 5}, nil
	})

	e := New(src, 5, 0, nil)
	numbers, err := e.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, numbers)
	assert.Equal(t, 3, calls)
}

func TestExtractRetriesIncompleteDraws(t *testing.T) {
	calls := 0
	src := SourceFunc(func(ctx context.Context) ([]int, error) {
		calls++
		return []int{1, 2, 3}, nil // short draw, not an error from the source
	})

	e := New(src, 2, 0, nil)
	_, err := e.Extract(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoResult)
	assert.Equal(t, 2, calls)
}

func TestExtractExhaustsBudget(t *testing.T) {
	calls := 0
	src := SourceFunc(func(ctx context.Context) ([]int, error) {
		calls++
		return nil, errors.New("down")
	})

	e := New(src, 3, 0, nil)
	_, err := e.Extract(context.Background())
	assert.ErrorIs(t, err, ErrNoResult)
	assert.Equal(t, 3, calls)
}

func TestExtractHonorsContextDuringCooldown(t *testing.T) {
	src := SourceFunc(func(ctx context.Context) ([]int, error) {
		return nil, errors.New("down")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(src, 3, time.Hour, nil)
	_, err := e.Extract(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseTwoDigit(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"07", 7, true},
		{"7", 7, true},
		{"00", 0, true},
		{"99", 99, true},
		{"", 0, false},
		{"100", 0, false},
		{"-1", 0, false},
		{"ab", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseTwoDigit(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "input %q", tt.in)
		}
	}
}
