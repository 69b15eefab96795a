package settlement

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/miniis3/lotteryd/internal/notify"
)

// Test doubles for the workflow's collaborators. Kept out of _test files so
// other packages can reuse them.

// MockGateway simulates the lottery contract in memory.
type MockGateway struct {
	mu sync.Mutex

	Round      uint64
	Closed     map[uint64]bool
	Winning    map[uint64][NumberCount]uint8
	Selections map[uint8]string // slots of the current round
	Reward     *big.Int

	CommitCalls  [][NumberCount]uint8
	AdvanceCalls int

	ReadErr     error
	SelectedErr error
	CommitErr   error
	AdvanceErr  error
}

var _ Gateway = (*MockGateway)(nil)

// NewMockGateway creates a gateway with one open round.
func NewMockGateway(round uint64) *MockGateway {
	return &MockGateway{
		Round:      round,
		Closed:     make(map[uint64]bool),
		Winning:    make(map[uint64][NumberCount]uint8),
		Selections: make(map[uint8]string),
		Reward:     big.NewInt(1_000_000), // 1 USDC per match
	}
}

func (g *MockGateway) CurrentRound(ctx context.Context) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ReadErr != nil {
		return 0, g.ReadErr
	}
	return g.Round, nil
}

func (g *MockGateway) RoundClosed(ctx context.Context, round uint64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ReadErr != nil {
		return false, g.ReadErr
	}
	return g.Closed[round], nil
}

func (g *MockGateway) WinningNumbers(ctx context.Context, round uint64) ([NumberCount]uint8, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ReadErr != nil {
		return [NumberCount]uint8{}, g.ReadErr
	}
	return g.Winning[round], nil
}

func (g *MockGateway) SelectedNumber(ctx context.Context, round uint64, number uint8) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SelectedErr != nil {
		return "", g.SelectedErr
	}
	return g.Selections[number], nil
}

func (g *MockGateway) RewardPerMatch(ctx context.Context) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ReadErr != nil {
		return nil, g.ReadErr
	}
	return g.Reward, nil
}

func (g *MockGateway) SetWinningNumbers(ctx context.Context, numbers [NumberCount]uint8) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CommitErr != nil {
		return g.CommitErr
	}
	if g.Closed[g.Round] {
		return errors.New("execution reverted: round already closed")
	}
	g.CommitCalls = append(g.CommitCalls, numbers)
	g.Closed[g.Round] = true
	g.Winning[g.Round] = numbers
	return nil
}

func (g *MockGateway) StartNewRound(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AdvanceErr != nil {
		return g.AdvanceErr
	}
	g.AdvanceCalls++
	g.Round++
	return nil
}

// StaticExtractor returns a fixed draw (or error) and counts calls.
type StaticExtractor struct {
	Numbers []int
	Err     error
	Calls   int
}

var _ ResultExtractor = (*StaticExtractor)(nil)

func (e *StaticExtractor) Extract(ctx context.Context) ([]int, error) {
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	return e.Numbers, nil
}

// SentNotification records one delivery attempt.
type SentNotification struct {
	FIDs         []int64
	Notification notify.Notification
}

// MockNotifier records deliveries and can fail specific FIDs.
type MockNotifier struct {
	mu       sync.Mutex
	Sent     []SentNotification
	FailFIDs map[int64]bool
}

var _ notify.Notifier = (*MockNotifier)(nil)

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{FailFIDs: make(map[int64]bool)}
}

func (n *MockNotifier) Send(ctx context.Context, fids []int64, msg notify.Notification) (notify.DeliveryState, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, fid := range fids {
		if n.FailFIDs[fid] {
			return notify.StateError, errors.New("delivery failed")
		}
	}
	n.Sent = append(n.Sent, SentNotification{FIDs: fids, Notification: msg})
	return notify.StateSuccess, nil
}
