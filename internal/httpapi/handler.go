// Package httpapi exposes the backend's REST surface: the settlement trigger
// plus the mini-app's social-routing endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miniis3/lotteryd/internal/config"
	"github.com/miniis3/lotteryd/internal/farcaster"
	"github.com/miniis3/lotteryd/internal/kv"
	"github.com/miniis3/lotteryd/internal/metrics"
	"github.com/miniis3/lotteryd/internal/middleware"
	"github.com/miniis3/lotteryd/internal/notify"
	"github.com/miniis3/lotteryd/internal/settlement"
	"github.com/miniis3/lotteryd/pkg/logger"
)

// WorkflowRunner runs one settlement cycle.
type WorkflowRunner interface {
	Run(ctx context.Context) (settlement.Report, error)
}

// Handler bundles the HTTP endpoints.
type Handler struct {
	cfg      *config.Config
	runner   WorkflowRunner
	store    kv.Store
	users    *farcaster.Client // nil when the managed API is not configured
	notifier notify.Notifier
	log      *logger.Logger
	now      func() time.Time
}

// NewHandler builds the router. users may be nil.
func NewHandler(cfg *config.Config, runner WorkflowRunner, store kv.Store, users *farcaster.Client, notifier notify.Notifier, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &Handler{
		cfg:      cfg,
		runner:   runner,
		store:    store,
		users:    users,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
	return h.routes()
}

func (h *Handler) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(h.log))
	r.Use(middleware.Metrics)
	r.Use(middleware.NewRateLimiter(20, 40).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/auto-round", h.autoRound)
		r.Post("/set-address-fid", h.setAddressFID)
		// Older frontend builds post the wallet mapping here.
		r.Post("/record-selection", h.setAddressFID)
		r.Post("/get-fids", h.getFIDs)
		r.Post("/add-participant", h.addParticipant)
		r.Get("/get-participants", h.getParticipants)
		r.Post("/update-participant", h.updateParticipant)
		r.Post("/send-custom-notification", h.sendCustomNotification)
		r.Post("/get-users", h.getUsers)
		r.Post("/webhook", h.webhook)
	})
	return r
}

type triggerResponse struct {
	Success  bool               `json:"success"`
	Message  string             `json:"message,omitempty"`
	Outcome  settlement.Outcome `json:"outcome,omitempty"`
	Round    uint64             `json:"round,omitempty"`
	Advanced bool               `json:"advanced,omitempty"`
}

// autoRound is the settlement trigger. Authentication and the daily time
// gate run before any workflow state transition.
func (h *Handler) autoRound(w http.ResponseWriter, r *http.Request) {
	secret := bearerToken(r)
	if secret == "" {
		secret = r.URL.Query().Get("secret")
	}
	if secret == "" || secret != h.cfg.CronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if h.cfg.BeforeCutoff(h.now()) {
		writeJSON(w, http.StatusOK, triggerResponse{Success: false, Message: "Too early for results"})
		return
	}

	rep, err := h.runner.Run(r.Context())
	metrics.SettlementRuns.WithLabelValues(outcomeLabel(rep.Outcome)).Inc()

	if err != nil {
		h.log.WithError(err).WithField("round", rep.Round).Error("settlement cycle failed")
		writeJSON(w, http.StatusInternalServerError, triggerResponse{
			Success:  false,
			Message:  err.Error(),
			Outcome:  rep.Outcome,
			Round:    rep.Round,
			Advanced: rep.Advanced,
		})
		return
	}

	resp := triggerResponse{
		Outcome:  rep.Outcome,
		Round:    rep.Round,
		Advanced: rep.Advanced,
	}
	switch rep.Outcome {
	case settlement.OutcomeCommitted, settlement.OutcomeSkippedAlreadyClosed:
		resp.Success = true
	case settlement.OutcomeSkippedDuplicate:
		resp.Message = "Winners identical to previous round"
	case settlement.OutcomeSkippedInvalid:
		resp.Message = "Invalid winners data"
	}
	writeJSON(w, http.StatusOK, resp)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func outcomeLabel(o settlement.Outcome) string {
	if o == "" {
		return "failed"
	}
	return string(o)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": err.Error()})
}

func decodeJSON(body io.Reader, target interface{}) error {
	dec := json.NewDecoder(io.LimitReader(body, 1<<20))
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
