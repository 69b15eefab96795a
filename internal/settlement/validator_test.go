package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCandidate(t *testing.T) {
	previous := []int{23, 45, 67, 89, 12}

	tests := []struct {
		name      string
		candidate []int
		previous  []int
		wantErr   error
	}{
		{"valid draw", []int{1, 2, 3, 4, 5}, previous, nil},
		{"valid with zeros present", []int{0, 0, 0, 0, 1}, previous, nil},
		{"too few numbers", []int{1, 2, 3, 4}, previous, ErrWrongCount},
		{"too many numbers", []int{1, 2, 3, 4, 5, 6}, previous, ErrWrongCount},
		{"empty candidate", nil, previous, ErrWrongCount},
		{"negative number", []int{1, -1, 3, 4, 5}, previous, ErrOutOfRange},
		{"number above 99", []int{1, 100, 3, 4, 5}, previous, ErrOutOfRange},
		{"all zero", []int{0, 0, 0, 0, 0}, previous, ErrAllZero},
		{"identical to previous", []int{23, 45, 67, 89, 12}, previous, ErrSameAsPrevious},
		{"same numbers different order", []int{12, 89, 67, 45, 23}, previous, nil},
		{"no previous round", []int{23, 45, 67, 89, 12}, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCandidate(tt.candidate, tt.previous)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateCandidateRangeBeforeZeroCheck(t *testing.T) {
	// A draw that is both out of range and otherwise zero reports the range
	// violation, the more specific failure.
	err := ValidateCandidate([]int{0, 0, 0, 0, 120}, nil)
	assert.ErrorIs(t, err, ErrOutOfRange)
}
