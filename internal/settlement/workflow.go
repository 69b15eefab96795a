package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/miniis3/lotteryd/internal/notify"
	"github.com/miniis3/lotteryd/pkg/logger"
)

// Options tune workflow behaviour.
type Options struct {
	// AppName appears in notification titles.
	AppName string
	// AdvanceOnSkip starts a new round even when the candidate was rejected
	// by validation. Off by default: the round stays open so a later
	// invocation can settle it once the source publishes fresh data.
	AdvanceOnSkip bool
	// ScanConcurrency caps parallel slot reads during the winner tally.
	ScanConcurrency int
	// ManagedBroadcast sends the new-round broadcast as a single fan-out
	// request; otherwise each tracked FID is notified individually.
	ManagedBroadcast bool
}

// Workflow runs one settlement cycle per invocation. It holds no state of its
// own; everything is read fresh from the chain and the external source.
type Workflow struct {
	gateway   Gateway
	extractor ResultExtractor
	social    SocialDirectory
	notifier  notify.Notifier
	opts      Options
	log       *logger.Logger
}

// New assembles a settlement workflow.
func New(gateway Gateway, extractor ResultExtractor, social SocialDirectory, notifier notify.Notifier, opts Options, log *logger.Logger) *Workflow {
	if opts.AppName == "" {
		opts.AppName = "MINIIS3"
	}
	if opts.ScanConcurrency < 1 {
		opts.ScanConcurrency = 10
	}
	if log == nil {
		log = logger.NewDefault("settlement")
	}
	return &Workflow{
		gateway:   gateway,
		extractor: extractor,
		social:    social,
		notifier:  notifier,
		opts:      opts,
		log:       log,
	}
}

// Run executes one settlement cycle: extract, validate, commit, tally and
// notify, advance, broadcast. Steps run strictly in that order; a failed
// chain write aborts everything that depends on it. A non-nil error marks a
// cycle the operator (or the next scheduled trigger) must re-invoke.
func (w *Workflow) Run(ctx context.Context) (Report, error) {
	round, err := w.gateway.CurrentRound(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("read current round: %w", err)
	}
	log := w.log.WithField("round", round)

	closed, err := w.gateway.RoundClosed(ctx, round)
	if err != nil {
		return Report{Round: round}, fmt.Errorf("read round state: %w", err)
	}

	// A closed round with no successor means a previous cycle settled but
	// failed to advance. Skip straight to advancement; re-committing would
	// revert anyway.
	if closed {
		log.Info("round already closed, advancing only")
		rep := Report{Round: round, Outcome: OutcomeSkippedAlreadyClosed}
		if err := w.advance(ctx, &rep); err != nil {
			return rep, err
		}
		return rep, nil
	}

	candidate, err := w.extractor.Extract(ctx)
	if err != nil {
		log.WithError(err).Error("no valid winning numbers after retries")
		return Report{Round: round, Outcome: OutcomeExtractionFailed},
			fmt.Errorf("extract winning numbers: %w", err)
	}

	// The previous round's committed numbers must be read before any write
	// for this round: the duplicate check compares against them.
	var previous []int
	if round > 1 {
		prev, err := w.gateway.WinningNumbers(ctx, round-1)
		if err != nil {
			return Report{Round: round}, fmt.Errorf("read previous winning numbers: %w", err)
		}
		previous = make([]int, NumberCount)
		for i, n := range prev {
			previous[i] = int(n)
		}
	}

	if err := ValidateCandidate(candidate, previous); err != nil {
		outcome := OutcomeSkippedInvalid
		if errors.Is(err, ErrSameAsPrevious) {
			outcome = OutcomeSkippedDuplicate
		}
		log.WithError(err).WithField("candidate", candidate).Warn("candidate rejected, commit skipped")

		rep := Report{Round: round, Outcome: outcome, Numbers: candidate}
		if w.opts.AdvanceOnSkip {
			if err := w.advance(ctx, &rep); err != nil {
				return rep, err
			}
		}
		return rep, nil
	}

	var numbers [NumberCount]uint8
	for i, n := range candidate {
		numbers[i] = uint8(n)
	}
	if err := w.gateway.SetWinningNumbers(ctx, numbers); err != nil {
		return Report{Round: round, Numbers: candidate},
			fmt.Errorf("commit winning numbers: %w", err)
	}
	log.WithField("numbers", candidate).Info("winning numbers committed")

	rep := Report{Round: round, Outcome: OutcomeCommitted, Numbers: candidate}

	winners, reward, err := w.tally(ctx, round, numbers)
	if err != nil {
		// The commit stands; a re-invocation sees the closed round and
		// advances without re-committing.
		return rep, fmt.Errorf("tally winners: %w", err)
	}
	rep.Winners = winners
	log.WithField("winner_count", len(winners)).Info("winner tally complete")

	w.notifyWinners(ctx, &rep, winners, reward)

	if err := w.advance(ctx, &rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// tally scans the round's slots and counts, per address, how many of the
// winning numbers it selected. Reads run with bounded concurrency to stay
// under provider rate limits; any read failure aborts the tally.
func (w *Workflow) tally(ctx context.Context, round uint64, winning [NumberCount]uint8) (map[string]int, *big.Int, error) {
	reward, err := w.gateway.RewardPerMatch(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read reward per match: %w", err)
	}

	winningSet := make(map[uint8]bool, NumberCount)
	for _, n := range winning {
		winningSet[n] = true
	}

	var mu sync.Mutex
	matches := make(map[string]int)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.ScanConcurrency)
	for num := 0; num < SlotCount; num++ {
		num := num
		g.Go(func() error {
			addr, err := w.gateway.SelectedNumber(gctx, round, uint8(num))
			if err != nil {
				return fmt.Errorf("read slot %d: %w", num, err)
			}
			if addr == "" || !winningSet[uint8(num)] {
				return nil
			}
			mu.Lock()
			matches[addr]++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return matches, reward, nil
}

// notifyWinners is best-effort: a delivery failure for one address never
// blocks the rest, and never fails the cycle.
func (w *Workflow) notifyWinners(ctx context.Context, rep *Report, winners map[string]int, reward *big.Int) {
	for addr, count := range winners {
		log := w.log.WithField("address", addr).WithField("matches", count)

		fid, err := w.social.FIDByAddress(ctx, addr)
		if err != nil {
			log.WithError(err).Warn("fid lookup failed")
			continue
		}
		if fid == 0 {
			log.Debug("no fid mapping, skipping notification")
			continue
		}

		amount := usdcAmount(count, reward)
		state, err := w.notifier.Send(ctx, []int64{fid}, notify.Notification{
			Title: fmt.Sprintf("Congratulations! You won in %s", w.opts.AppName),
			Body: fmt.Sprintf("You matched %d numbers and won %s USDC. Go to the app to claim your reward.",
				count, amount),
		})
		if err != nil || state != notify.StateSuccess {
			log.WithError(err).WithField("state", state).Warn("winner notification not delivered")
			continue
		}
		rep.Notified++
		log.WithField("fid", fid).Info("winner notified")
	}
}

// advance starts the next round and, on success, broadcasts it. Broadcast
// failures never roll back the advancement.
func (w *Workflow) advance(ctx context.Context, rep *Report) error {
	if err := w.gateway.StartNewRound(ctx); err != nil {
		return fmt.Errorf("start new round: %w", err)
	}
	rep.Advanced = true
	w.log.WithField("previous_round", rep.Round).Info("new round started")

	w.broadcastNewRound(ctx)
	return nil
}

func (w *Workflow) broadcastNewRound(ctx context.Context) {
	n := notify.Notification{
		Title: fmt.Sprintf("New %s round started", w.opts.AppName),
		Body:  "Pick your lucky number for today's draw.",
	}

	if w.opts.ManagedBroadcast {
		if state, err := w.notifier.Send(ctx, nil, n); err != nil || state != notify.StateSuccess {
			w.log.WithError(err).WithField("state", state).Warn("new round broadcast failed")
		}
		return
	}

	fids, err := w.social.AllUserFIDs(ctx)
	if err != nil {
		w.log.WithError(err).Warn("broadcast audience lookup failed")
		return
	}
	for _, fid := range fids {
		if state, err := w.notifier.Send(ctx, []int64{fid}, n); err != nil || state != notify.StateSuccess {
			w.log.WithError(err).WithField("fid", fid).WithField("state", state).
				Warn("new round notification not delivered")
		}
	}
}

// usdcAmount renders matches x rewardPerMatch (6-decimal fixed point) as a
// human-readable USDC amount.
func usdcAmount(matches int, rewardPerMatch *big.Int) string {
	if rewardPerMatch == nil {
		return "0"
	}
	total := new(big.Int).Mul(rewardPerMatch, big.NewInt(int64(matches)))
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(total), big.NewFloat(1e6)).Float64()
	return strconv.FormatFloat(value, 'f', -1, 64)
}
