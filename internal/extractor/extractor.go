// Package extractor pulls daily winning numbers out of an external lottery
// source. The sources publish either a JSON feed or an HTML results table;
// both layouts are fragile and described by configuration profiles.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/miniis3/lotteryd/internal/config"
	"github.com/miniis3/lotteryd/pkg/logger"
)

// NumberCount is the size of a complete draw: four seventh-prize numbers plus
// the last two digits of the special prize.
const NumberCount = 5

const userAgent = "Mozilla/5.0"

// ErrNoResult is returned once every fetch attempt has been exhausted.
var ErrNoResult = errors.New("no valid lottery result after retries")

// ErrorKind classifies extraction failures.
type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindParse      ErrorKind = "parse"
	KindIncomplete ErrorKind = "incomplete"
)

// ExtractError tags a failure with the stage it occurred in.
type ExtractError struct {
	Kind ErrorKind
	Err  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract (%s): %v", e.Kind, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

func extractErr(kind ErrorKind, format string, args ...interface{}) error {
	return &ExtractError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Source fetches the most recent draw from one external lottery source.
type Source interface {
	FetchLatestDraw(ctx context.Context) ([]int, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]int, error)

func (f SourceFunc) FetchLatestDraw(ctx context.Context) ([]int, error) {
	return f(ctx)
}

// NewSource builds a Source from a configuration profile.
func NewSource(profile config.SourceProfile, client *http.Client, log *logger.Logger) (Source, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("extractor")
	}
	switch profile.Kind {
	case "json":
		return &JSONSource{url: profile.URL, profile: *profile.JSON, client: client, log: log}, nil
	case "html":
		return &HTMLSource{url: profile.URL, profile: *profile.HTML, client: client, log: log}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", profile.Kind)
	}
}

// Extractor retries a Source until it yields a complete draw or the attempt
// budget runs out. It never propagates source failures to the caller; after
// the final attempt it reports ErrNoResult.
type Extractor struct {
	source   Source
	attempts int
	cooldown time.Duration
	log      *logger.Logger
}

// New creates an extractor with the given retry budget.
func New(source Source, attempts int, cooldown time.Duration, log *logger.Logger) *Extractor {
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = logger.NewDefault("extractor")
	}
	return &Extractor{source: source, attempts: attempts, cooldown: cooldown, log: log}
}

// Extract fetches until it has exactly NumberCount values in [0,99].
func (e *Extractor) Extract(ctx context.Context) ([]int, error) {
	for attempt := 1; attempt <= e.attempts; attempt++ {
		numbers, err := e.source.FetchLatestDraw(ctx)
		if err == nil && len(numbers) == NumberCount {
			e.log.WithField("numbers", numbers).Info("fetched valid winning numbers")
			return numbers, nil
		}
		if err == nil {
			err = extractErr(KindIncomplete, "got %d valid numbers, want %d", len(numbers), NumberCount)
		}
		e.log.WithError(err).
			WithField("attempt", attempt).
			WithField("max_attempts", e.attempts).
			Warn("lottery result fetch failed")

		if attempt == e.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.cooldown):
		}
	}
	return nil, ErrNoResult
}

// parseTwoDigit accepts values like "07" or "7" and rejects anything that is
// not an integer in [0,99].
func parseTwoDigit(s string) (int, bool) {
	if s == "" || len(s) > 2 {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 99 {
		return 0, false
	}
	return n, true
}
