package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/miniis3/lotteryd/internal/farcaster"
	"github.com/miniis3/lotteryd/pkg/logger"
)

// TokenStore looks up stored notification credentials for a user.
type TokenStore interface {
	NotificationDetails(ctx context.Context, fid int64) (*farcaster.NotificationDetails, error)
}

// SelfHosted delivers notifications directly to each user's client endpoint
// using tokens collected via the webhook. It cannot broadcast; callers must
// name every recipient.
type SelfHosted struct {
	tokens    TokenStore
	targetURL string
	http      *http.Client
	log       *logger.Logger
}

var _ Notifier = (*SelfHosted)(nil)

// NewSelfHosted creates the direct-delivery notifier.
func NewSelfHosted(tokens TokenStore, targetURL string, log *logger.Logger) *SelfHosted {
	if log == nil {
		log = logger.NewDefault("notify")
	}
	return &SelfHosted{
		tokens:    tokens,
		targetURL: targetURL,
		http:      &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

func (s *SelfHosted) Send(ctx context.Context, fids []int64, n Notification) (DeliveryState, error) {
	if len(fids) == 0 {
		return StateError, errors.New("self-hosted delivery requires explicit recipients")
	}

	// A failure for one recipient must not block the rest; report the worst
	// state seen across the batch.
	worst := StateSuccess
	var firstErr error
	for _, fid := range fids {
		state, err := s.sendOne(ctx, fid, n)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if rank(state) > rank(worst) {
			worst = state
		}
	}
	return worst, firstErr
}

func (s *SelfHosted) sendOne(ctx context.Context, fid int64, n Notification) (DeliveryState, error) {
	details, err := s.tokens.NotificationDetails(ctx, fid)
	if err != nil {
		return StateError, fmt.Errorf("lookup token for fid %d: %w", fid, err)
	}
	if details == nil {
		return StateNoToken, nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"notificationId": uuid.NewString(),
		"title":          n.Title,
		"body":           n.Body,
		"targetUrl":      s.targetURL,
		"tokens":         []string{details.Token},
	})
	if err != nil {
		return StateError, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, details.URL, bytes.NewReader(payload))
	if err != nil {
		return StateError, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return StateError, fmt.Errorf("deliver to fid %d: %w", fid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StateError, fmt.Errorf("deliver to fid %d: status %d", fid, resp.StatusCode)
	}

	var result struct {
		Result struct {
			SuccessfulTokens  []string `json:"successfulTokens"`
			InvalidTokens     []string `json:"invalidTokens"`
			RateLimitedTokens []string `json:"rateLimitedTokens"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return StateError, fmt.Errorf("decode delivery response for fid %d: %w", fid, err)
	}
	if len(result.Result.RateLimitedTokens) > 0 {
		return StateRateLimit, nil
	}
	if len(result.Result.SuccessfulTokens) == 0 {
		return StateNoToken, nil
	}
	return StateSuccess, nil
}

func rank(s DeliveryState) int {
	switch s {
	case StateSuccess:
		return 0
	case StateNoToken:
		return 1
	case StateRateLimit:
		return 2
	default:
		return 3
	}
}
