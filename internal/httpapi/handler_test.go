package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniis3/lotteryd/internal/config"
	"github.com/miniis3/lotteryd/internal/kv"
	"github.com/miniis3/lotteryd/internal/notify"
	"github.com/miniis3/lotteryd/internal/settlement"
	"github.com/miniis3/lotteryd/pkg/logger"
)

type stubRunner struct {
	report settlement.Report
	err    error
	calls  int
}

func (s *stubRunner) Run(ctx context.Context) (settlement.Report, error) {
	s.calls++
	return s.report, s.err
}

type stubNotifier struct {
	state notify.DeliveryState
	err   error
	sent  []notify.Notification
	fids  [][]int64
}

func (s *stubNotifier) Send(_ context.Context, fids []int64, n notify.Notification) (notify.DeliveryState, error) {
	s.sent = append(s.sent, n)
	s.fids = append(s.fids, fids)
	return s.state, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		CronSecret: "topsecret",
		CutoffHour: 12,
	}
}

// afterCutoff is any instant past the daily gate.
var afterCutoff = time.Date(2026, 8, 31, 13, 0, 0, 0, time.UTC)

func newTestHandler(cfg *config.Config, runner WorkflowRunner, store kv.Store, notifier notify.Notifier) http.Handler {
	h := &Handler{
		cfg:      cfg,
		runner:   runner,
		store:    store,
		notifier: notifier,
		log:      logger.NewDefault("test"),
		now:      func() time.Time { return afterCutoff },
	}
	return h.routes()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAutoRoundRejectsBadSecret(t *testing.T) {
	runner := &stubRunner{}
	handler := newTestHandler(testConfig(), runner, kv.NewMemoryStore(), &stubNotifier{state: notify.StateSuccess})

	for _, path := range []string{"/api/auto-round", "/api/auto-round?secret=wrong"} {
		rec := doJSON(t, handler, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	assert.Equal(t, 0, runner.calls, "unauthorized requests must not run the workflow")
}

func TestAutoRoundAcceptsBearerToken(t *testing.T) {
	runner := &stubRunner{report: settlement.Report{Round: 3, Outcome: settlement.OutcomeCommitted, Advanced: true}}
	handler := newTestHandler(testConfig(), runner, kv.NewMemoryStore(), &stubNotifier{state: notify.StateSuccess})

	req := httptest.NewRequest(http.MethodGet, "/api/auto-round", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp triggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, settlement.OutcomeCommitted, resp.Outcome)
	assert.Equal(t, uint64(3), resp.Round)
	assert.True(t, resp.Advanced)
}

func TestAutoRoundBeforeCutoff(t *testing.T) {
	runner := &stubRunner{}
	h := &Handler{
		cfg:      testConfig(),
		runner:   runner,
		store:    kv.NewMemoryStore(),
		notifier: &stubNotifier{state: notify.StateSuccess},
		log:      logger.NewDefault("test"),
		now:      func() time.Time { return time.Date(2026, 8, 31, 11, 59, 0, 0, time.UTC) },
	}
	rec := doJSON(t, h.routes(), http.MethodGet, "/api/auto-round?secret=topsecret", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp triggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Too early for results", resp.Message)
	assert.Equal(t, 0, runner.calls)
}

func TestAutoRoundOutcomeMapping(t *testing.T) {
	tests := []struct {
		name        string
		report      settlement.Report
		err         error
		wantStatus  int
		wantSuccess bool
		wantMessage string
	}{
		{
			name:        "committed",
			report:      settlement.Report{Outcome: settlement.OutcomeCommitted, Advanced: true},
			wantStatus:  http.StatusOK,
			wantSuccess: true,
		},
		{
			name:        "already closed",
			report:      settlement.Report{Outcome: settlement.OutcomeSkippedAlreadyClosed, Advanced: true},
			wantStatus:  http.StatusOK,
			wantSuccess: true,
		},
		{
			name:        "duplicate",
			report:      settlement.Report{Outcome: settlement.OutcomeSkippedDuplicate},
			wantStatus:  http.StatusOK,
			wantMessage: "Winners identical to previous round",
		},
		{
			name:        "invalid",
			report:      settlement.Report{Outcome: settlement.OutcomeSkippedInvalid},
			wantStatus:  http.StatusOK,
			wantMessage: "Invalid winners data",
		},
		{
			name:       "extraction failed",
			report:     settlement.Report{Outcome: settlement.OutcomeExtractionFailed},
			err:        errors.New("extract winning numbers: no valid lottery result after retries"),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "commit failed",
			report:     settlement.Report{Round: 9},
			err:        errors.New("commit winning numbers: execution reverted"),
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{report: tt.report, err: tt.err}
			handler := newTestHandler(testConfig(), runner, kv.NewMemoryStore(), &stubNotifier{state: notify.StateSuccess})

			rec := doJSON(t, handler, http.MethodGet, "/api/auto-round?secret=topsecret", nil)
			require.Equal(t, tt.wantStatus, rec.Code)

			var resp triggerResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantSuccess, resp.Success)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp.Message)
			}
			if tt.err != nil {
				assert.Contains(t, resp.Message, tt.err.Error())
			}
		})
	}
}

func TestSetAddressFIDAndLookup(t *testing.T) {
	store := kv.NewMemoryStore()
	handler := newTestHandler(testConfig(), &stubRunner{}, store, &stubNotifier{state: notify.StateSuccess})

	rec := doJSON(t, handler, http.MethodPost, "/api/set-address-fid", map[string]interface{}{
		"address": "0xABCDEF1234567890abcdef1234567890ABCDEF12",
		"fid":     777,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/get-fids", map[string]interface{}{
		"addresses": []string{"0xabcdef1234567890abcdef1234567890abcdef12", "0x0000000000000000000000000000000000000001"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]*int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp["0xabcdef1234567890abcdef1234567890abcdef12"])
	assert.Equal(t, int64(777), *resp["0xabcdef1234567890abcdef1234567890abcdef12"])
	assert.Nil(t, resp["0x0000000000000000000000000000000000000001"])
}

func TestRecordSelectionAliasStoresMapping(t *testing.T) {
	store := kv.NewMemoryStore()
	handler := newTestHandler(testConfig(), &stubRunner{}, store, &stubNotifier{state: notify.StateSuccess})

	rec := doJSON(t, handler, http.MethodPost, "/api/record-selection", map[string]interface{}{
		"address": "0xaaa",
		"fid":     12,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	fid, err := store.FIDByAddress(context.Background(), "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, int64(12), fid)
}

func TestSetAddressFIDValidation(t *testing.T) {
	handler := newTestHandler(testConfig(), &stubRunner{}, kv.NewMemoryStore(), &stubNotifier{state: notify.StateSuccess})

	rec := doJSON(t, handler, http.MethodPost, "/api/set-address-fid", map[string]interface{}{"address": "", "fid": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/set-address-fid", map[string]interface{}{"address": "0xabc", "fid": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParticipantsRoundTrip(t *testing.T) {
	store := kv.NewMemoryStore()
	handler := newTestHandler(testConfig(), &stubRunner{}, store, &stubNotifier{state: notify.StateSuccess})

	for _, p := range []map[string]interface{}{
		{"round": 4, "number": "42", "address": "0xaaa", "username": "alice"},
		{"round": 4, "number": "07", "address": "0xbbb1234567890"},
	} {
		rec := doJSON(t, handler, http.MethodPost, "/api/add-participant", p)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/get-participants?round=4", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []participantView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)

	// Sorted by slot number; anonymous entries show a truncated address.
	assert.Equal(t, "07", views[0].Number)
	assert.Equal(t, "0xbbb1...7890", views[0].User)
	assert.Equal(t, "42", views[1].Number)
	assert.Equal(t, "alice", views[1].User)
}

func TestGetParticipantsRequiresRound(t *testing.T) {
	handler := newTestHandler(testConfig(), &stubRunner{}, kv.NewMemoryStore(), &stubNotifier{state: notify.StateSuccess})

	rec := doJSON(t, handler, http.MethodGet, "/api/get-participants", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/get-participants?round=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateParticipantPadsNumber(t *testing.T) {
	store := kv.NewMemoryStore()
	handler := newTestHandler(testConfig(), &stubRunner{}, store, &stubNotifier{state: notify.StateSuccess})

	rec := doJSON(t, handler, http.MethodPost, "/api/update-participant", map[string]interface{}{
		"round":   2,
		"number":  7,
		"address": "0xccc",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	participants, err := store.Participants(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "07", participants[0].Number)
}

func TestSendCustomNotification(t *testing.T) {
	tests := []struct {
		name       string
		state      notify.DeliveryState
		err        error
		wantStatus int
	}{
		{"delivered", notify.StateSuccess, nil, http.StatusOK},
		{"rate limited", notify.StateRateLimit, nil, http.StatusTooManyRequests},
		{"no token", notify.StateNoToken, nil, http.StatusBadRequest},
		{"error", notify.StateError, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &stubNotifier{state: tt.state, err: tt.err}
			handler := newTestHandler(testConfig(), &stubRunner{}, kv.NewMemoryStore(), notifier)

			rec := doJSON(t, handler, http.MethodPost, "/api/send-custom-notification", map[string]interface{}{
				"fid":   42,
				"title": "hello",
				"body":  "world",
			})
			assert.Equal(t, tt.wantStatus, rec.Code)
			require.Len(t, notifier.fids, 1)
			assert.Equal(t, []int64{42}, notifier.fids[0])
		})
	}
}

func TestSendCustomNotificationValidation(t *testing.T) {
	notifier := &stubNotifier{state: notify.StateSuccess}
	handler := newTestHandler(testConfig(), &stubRunner{}, kv.NewMemoryStore(), notifier)

	rec := doJSON(t, handler, http.MethodPost, "/api/send-custom-notification", map[string]interface{}{
		"fid": 42, "title": "", "body": "world",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, notifier.sent)
}

func TestWebhookLifecycle(t *testing.T) {
	store := kv.NewMemoryStore()
	handler := newTestHandler(testConfig(), &stubRunner{}, store, &stubNotifier{state: notify.StateSuccess})
	ctx := context.Background()

	rec := doJSON(t, handler, http.MethodPost, "/api/webhook", map[string]interface{}{
		"fid":   99,
		"event": "frame_added",
		"notificationDetails": map[string]string{
			"url":   "https://client.example/notify",
			"token": "tok-1",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	details, err := store.NotificationDetails(ctx, 99)
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Equal(t, "tok-1", details.Token)

	fids, err := store.AllUserFIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{99}, fids)

	rec = doJSON(t, handler, http.MethodPost, "/api/webhook", map[string]interface{}{
		"fid": 99, "event": "notifications_disabled",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	details, err = store.NotificationDetails(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, details)

	rec = doJSON(t, handler, http.MethodPost, "/api/webhook", map[string]interface{}{
		"fid": 99, "event": "frame_removed",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	fids, err = store.AllUserFIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, fids)
}

func TestWebhookRejectsUnknownEvent(t *testing.T) {
	handler := newTestHandler(testConfig(), &stubRunner{}, kv.NewMemoryStore(), &stubNotifier{state: notify.StateSuccess})

	rec := doJSON(t, handler, http.MethodPost, "/api/webhook", map[string]interface{}{
		"fid": 1, "event": "frame_teleported",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(testConfig(), &stubRunner{}, kv.NewMemoryStore(), &stubNotifier{state: notify.StateSuccess})
	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTruncateAddress(t *testing.T) {
	assert.Equal(t, "0x1234...1234", truncateAddress("0x1234567890abcdef1234"))
	assert.Equal(t, "0xshort", truncateAddress("0xshort"))
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", bearerToken(req))

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", bearerToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", bearerToken(req))
}

func TestOutcomeLabel(t *testing.T) {
	assert.Equal(t, "failed", outcomeLabel(""))
	assert.Equal(t, "committed", outcomeLabel(settlement.OutcomeCommitted))
}
