// Package settlement implements the daily round-settlement workflow: fetch
// the external draw, validate it, commit winning numbers on-chain, tally and
// notify winners, advance to the next round, and broadcast the new round.
package settlement

import (
	"context"
	"errors"
	"math/big"
)

// NumberCount is how many winning numbers close a round.
const NumberCount = 5

// SlotCount is the number of selectable slots per round (00-99).
const SlotCount = 100

// Outcome describes how a settlement invocation ended. Skips are ordinary
// results, not errors; the trigger handler maps them to HTTP responses.
type Outcome string

const (
	OutcomeCommitted            Outcome = "committed"
	OutcomeSkippedInvalid       Outcome = "skipped_invalid"
	OutcomeSkippedDuplicate     Outcome = "skipped_duplicate"
	OutcomeSkippedAlreadyClosed Outcome = "skipped_already_closed"
	OutcomeExtractionFailed     Outcome = "extraction_failed"
)

// Report summarizes one settlement invocation.
type Report struct {
	Round    uint64         `json:"round"`
	Outcome  Outcome        `json:"outcome"`
	Numbers  []int          `json:"numbers,omitempty"`
	Winners  map[string]int `json:"winners,omitempty"` // address -> match count
	Notified int            `json:"notified"`
	Advanced bool           `json:"advanced"`
}

// Validation errors.
var (
	ErrWrongCount     = errors.New("candidate must have exactly 5 numbers")
	ErrOutOfRange     = errors.New("candidate number outside [0,99]")
	ErrAllZero        = errors.New("candidate numbers are all zero")
	ErrSameAsPrevious = errors.New("candidate identical to previous round")
)

// Gateway is the on-chain contract adapter consumed by the workflow.
type Gateway interface {
	CurrentRound(ctx context.Context) (uint64, error)
	RoundClosed(ctx context.Context, round uint64) (bool, error)
	WinningNumbers(ctx context.Context, round uint64) ([NumberCount]uint8, error)
	// SelectedNumber returns the empty string for unselected slots.
	SelectedNumber(ctx context.Context, round uint64, number uint8) (string, error)
	RewardPerMatch(ctx context.Context) (*big.Int, error)
	SetWinningNumbers(ctx context.Context, numbers [NumberCount]uint8) error
	StartNewRound(ctx context.Context) error
}

// ResultExtractor produces a candidate draw or an explicit failure after its
// internal retry budget is spent.
type ResultExtractor interface {
	Extract(ctx context.Context) ([]int, error)
}

// SocialDirectory routes on-chain addresses to Farcaster identities. A zero
// FID means no mapping; that only suppresses the notification.
type SocialDirectory interface {
	FIDByAddress(ctx context.Context, address string) (int64, error)
	AllUserFIDs(ctx context.Context) ([]int64, error)
}
