package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniis3/lotteryd/internal/config"
)

const jsonFeed = `{
  "t": {
    "issueList": [
      {
        "issue": "20260831",
        "detail": "[\"62185\",\"11111\",\"22222 33333\",\"4\",\"5\",\"6\",\"7\",\"01,23,45,67\"]"
      },
      {
        "issue": "20260830",
        "detail": "[\"99999\",\"1\",\"2\",\"3\",\"4\",\"5\",\"6\",\"90,91,92,93\"]"
      }
    ]
  }
}`

func jsonProfile(url string) config.SourceProfile {
	return config.SourceProfile{
		Name: "test-json",
		Kind: "json",
		URL:  url,
		JSON: &config.JSONProfile{
			IssueListPath: "t.issueList",
			DetailField:   "detail",
			SpecialIndex:  0,
			SeventhIndex:  7,
		},
	}
}

func TestJSONSourceParsesLatestIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(jsonFeed))
	}))
	defer srv.Close()

	src, err := NewSource(jsonProfile(srv.URL), srv.Client(), nil)
	require.NoError(t, err)

	numbers, err := src.FetchLatestDraw(context.Background())
	require.NoError(t, err)

	// Four seventh-prize numbers first, then the special prize's last two
	// digits.
	assert.Equal(t, []int{1, 23, 45, 67, 85}, numbers)
}

func TestJSONSourceEmptyIssueList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"t":{"issueList":[]}}`))
	}))
	defer srv.Close()

	src, err := NewSource(jsonProfile(srv.URL), srv.Client(), nil)
	require.NoError(t, err)

	_, err = src.FetchLatestDraw(context.Background())
	require.Error(t, err)
	var ee *ExtractError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindParse, ee.Kind)
}

func TestJSONSourceShortDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"t":{"issueList":[{"detail":"[\"62185\"]"}]}}`))
	}))
	defer srv.Close()

	src, err := NewSource(jsonProfile(srv.URL), srv.Client(), nil)
	require.NoError(t, err)

	_, err = src.FetchLatestDraw(context.Background())
	var ee *ExtractError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindParse, ee.Kind)
}

func TestJSONSourceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src, err := NewSource(jsonProfile(srv.URL), srv.Client(), nil)
	require.NoError(t, err)

	_, err = src.FetchLatestDraw(context.Background())
	var ee *ExtractError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindNetwork, ee.Kind)
}

const htmlPage = `<html><body>
<table class="bkqmienbac">
  <tr><th>Giải</th><th>Kết quả</th></tr>
  <tr><td>ĐB</td><td>62185</td></tr>
  <tr><td>1</td><td>11111</td></tr>
  <tr><td>2</td><td>22222 33333</td></tr>
  <tr><td>3</td><td>44444</td></tr>
  <tr><td>4</td><td>5555</td></tr>
  <tr><td>5</td><td>6666</td></tr>
  <tr><td>6</td><td>777</td></tr>
  <tr><td>7</td><td>01 - 23 - 45 - 67</td></tr>
</table>
</body></html>`

func htmlProfile(url string) config.SourceProfile {
	return config.SourceProfile{
		Name: "test-html",
		Kind: "html",
		URL:  url,
		HTML: &config.HTMLProfile{
			TableClass: "bkqmienbac",
			SpecialRow: 1,
			SpecialCol: 1,
			SeventhRow: 8,
			SeventhCol: 1,
		},
	}
}

func TestHTMLSourceParsesResultsTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(htmlPage))
	}))
	defer srv.Close()

	src, err := NewSource(htmlProfile(srv.URL), srv.Client(), nil)
	require.NoError(t, err)

	numbers, err := src.FetchLatestDraw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 23, 45, 67, 85}, numbers)
}

func TestHTMLSourceMissingTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>maintenance</p></body></html>`))
	}))
	defer srv.Close()

	src, err := NewSource(htmlProfile(srv.URL), srv.Client(), nil)
	require.NoError(t, err)

	_, err = src.FetchLatestDraw(context.Background())
	var ee *ExtractError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindParse, ee.Kind)
}

func TestHTMLSourceCapsSeventhNumbers(t *testing.T) {
	// A layout drift could merge extra numbers into the seventh cell; only
	// the first four count.
	page := `<table class="bkqmienbac">
  <tr><th>h</th><th>h</th></tr>
  <tr><td>ĐB</td><td>62185</td></tr>
  <tr><td>x</td><td>x</td></tr><tr><td>x</td><td>x</td></tr>
  <tr><td>x</td><td>x</td></tr><tr><td>x</td><td>x</td></tr>
  <tr><td>x</td><td>x</td></tr><tr><td>x</td><td>x</td></tr>
  <tr><td>7</td><td>01 - 23 - 45 - 67 - 89</td></tr>
</table>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	src, err := NewSource(htmlProfile(srv.URL), srv.Client(), nil)
	require.NoError(t, err)

	numbers, err := src.FetchLatestDraw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 23, 45, 67, 85}, numbers)
}

func TestNewSourceUnknownKind(t *testing.T) {
	_, err := NewSource(config.SourceProfile{Name: "bad", Kind: "rss"}, nil, nil)
	assert.Error(t, err)
}
