package extractor

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/miniis3/lotteryd/internal/config"
	"github.com/miniis3/lotteryd/pkg/logger"
)

// JSONSource extracts a draw from a JSON lottery feed. The feed publishes an
// issue list ordered newest first; each issue carries a "detail" field that is
// itself a JSON-encoded array of prize strings.
type JSONSource struct {
	url     string
	profile config.JSONProfile
	client  *http.Client
	log     *logger.Logger
}

func (s *JSONSource) FetchLatestDraw(ctx context.Context) ([]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, extractErr(KindNetwork, "create request: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, extractErr(KindNetwork, "fetch %s: %v", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, extractErr(KindNetwork, "fetch %s: status %d", s.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, extractErr(KindNetwork, "read body: %v", err)
	}

	issues := gjson.GetBytes(body, s.profile.IssueListPath)
	if !issues.IsArray() || len(issues.Array()) == 0 {
		return nil, extractErr(KindParse, "missing or empty issue list at %q", s.profile.IssueListPath)
	}

	latest := issues.Array()[0]
	detailRaw := latest.Get(s.profile.DetailField)
	if !detailRaw.Exists() {
		return nil, extractErr(KindParse, "issue has no %q field", s.profile.DetailField)
	}

	// detail is a string containing a JSON array, e.g. `["12345", ..., "01,02,03,04"]`.
	detail := gjson.Parse(detailRaw.String())
	entries := detail.Array()
	max := s.profile.SpecialIndex
	if s.profile.SeventhIndex > max {
		max = s.profile.SeventhIndex
	}
	if !detail.IsArray() || len(entries) <= max {
		return nil, extractErr(KindParse, "detail array too short: %d entries", len(entries))
	}

	special := entries[s.profile.SpecialIndex].String()
	if len(special) < 2 {
		return nil, extractErr(KindIncomplete, "special prize %q too short", special)
	}
	special = special[len(special)-2:]

	var numbers []int
	for _, part := range strings.Split(entries[s.profile.SeventhIndex].String(), ",") {
		if n, ok := parseTwoDigit(strings.TrimSpace(part)); ok {
			numbers = append(numbers, n)
		}
	}
	if n, ok := parseTwoDigit(special); ok {
		numbers = append(numbers, n)
	}
	return numbers, nil
}
