package extractor

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/miniis3/lotteryd/internal/config"
	"github.com/miniis3/lotteryd/pkg/logger"
)

// HTMLSource scrapes a draw out of a results table on an HTML page. Row and
// column offsets come from the source profile because the pages reshuffle
// their layout from time to time.
type HTMLSource struct {
	url     string
	profile config.HTMLProfile
	client  *http.Client
	log     *logger.Logger
}

var seventhSplit = regexp.MustCompile(`[\s-]+`)

func (s *HTMLSource) FetchLatestDraw(ctx context.Context) ([]int, error) {
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

	doc, err := html.Parse(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, extractErr(KindParse, "parse html: %v", err)
	}

	table := findTableByClass(doc, s.profile.TableClass)
	if table == nil {
		return nil, extractErr(KindParse, "no table with class %q", s.profile.TableClass)
	}
	rows := tableCells(table)

	special, ok := cellText(rows, s.profile.SpecialRow, s.profile.SpecialCol)
	if !ok || len(special) < 2 {
		return nil, extractErr(KindIncomplete, "special prize cell missing or too short")
	}
	special = special[len(special)-2:]

	seventh, ok := cellText(rows, s.profile.SeventhRow, s.profile.SeventhCol)
	if !ok {
		return nil, extractErr(KindIncomplete, "seventh prize cell missing")
	}

	var numbers []int
	for _, part := range seventhSplit.Split(seventh, -1) {
		if n, ok := parseTwoDigit(strings.TrimSpace(part)); ok {
			numbers = append(numbers, n)
		}
	}
	if len(numbers) > NumberCount-1 {
		numbers = numbers[:NumberCount-1]
	}
	if n, ok := parseTwoDigit(special); ok {
		numbers = append(numbers, n)
	}
	return numbers, nil
}

func findTableByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && n.Data == "table" {
		for _, attr := range n.Attr {
			if attr.Key == "class" && containsClass(attr.Val, class) {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTableByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func containsClass(attr, class string) bool {
	for _, c := range strings.Fields(attr) {
		if c == class {
			return true
		}
	}
	return false
}

// tableCells flattens a table into rows of trimmed cell text.
func tableCells(table *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, strings.TrimSpace(nodeText(c)))
				}
			}
			rows = append(rows, cells)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}

func cellText(rows [][]string, row, col int) (string, bool) {
	if row < 0 || row >= len(rows) {
		return "", false
	}
	if col < 0 || col >= len(rows[row]) {
		return "", false
	}
	return rows[row][col], true
}
