package httpserver

import (
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/quantfold/polymarket-bot/internal/risk"
	"github.com/quantfold/polymarket-bot/internal/storage"
)

const defaultPositionsLimit = 50

type dashboardHandler struct {
	store     storage.Store
	guard     *risk.Guard
	feed      FeedStatus
	dryRun    bool
	startedAt time.Time
	logger    *zap.Logger
}

func newDashboardHandler(store storage.Store, guard *risk.Guard, feed FeedStatus, dryRun bool, logger *zap.Logger) *dashboardHandler {
	return &dashboardHandler{
		store:     store,
		guard:     guard,
		feed:      feed,
		dryRun:    dryRun,
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
}

type statusResponse struct {
	Status        string  `json:"status"`
	DryRun        bool    `json:"dry_run"`
	Halted        bool    `json:"halted"`
	HaltReason    string  `json:"halt_reason,omitempty"`
	FeedConnected bool    `json:"feed_connected"`
	OpenPositions int     `json:"open_positions"`
	OpenExposure  float64 `json:"open_exposure"`
	TodayPnL      float64 `json:"today_pnl"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (h *dashboardHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	openCount, err := h.store.CountOpenPositions(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	exposure, err := h.store.TotalOpenExposure(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	today, err := h.store.DailyPnL(ctx, time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	halted, reason := h.guard.Halted()

	feedConnected := false
	if h.feed != nil {
		feedConnected = h.feed.IsConnected()
	}

	h.writeJSON(w, http.StatusOK, statusResponse{
		Status:        "ok",
		DryRun:        h.dryRun,
		Halted:        halted,
		HaltReason:    reason,
		FeedConnected: feedConnected,
		OpenPositions: openCount,
		OpenExposure:  exposure,
		TodayPnL:      today.TotalPnL,
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	})
}

func (h *dashboardHandler) handlePositions(w http.ResponseWriter, r *http.Request) {
	limit := defaultPositionsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, errInvalidLimit)
			return
		}
		limit = parsed
	}

	positions, err := h.store.RecentPositions(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.writeJSON(w, http.StatusOK, positions)
}

func (h *dashboardHandler) handleDailyPnL(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		h.writeError(w, http.StatusBadRequest, errInvalidDate)
		return
	}

	pnl, err := h.store.DailyPnL(r.Context(), date)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.writeJSON(w, http.StatusOK, pnl)
}

func (h *dashboardHandler) handleResume(w http.ResponseWriter, r *http.Request) {
	h.guard.Resume()
	h.logger.Info("trading-resume-requested", zap.String("remote", r.RemoteAddr))
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

type apiError struct{ msg string }

func (e *apiError) Error() string { return e.msg }

//nolint:gochecknoglobals // sentinel request errors
var (
	errInvalidLimit = &apiError{"limit must be a positive integer"}
	errInvalidDate  = &apiError{"date must be YYYY-MM-DD"}
)

func (h *dashboardHandler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("response-encode-failed", zap.Error(err))
	}
}

func (h *dashboardHandler) writeError(w http.ResponseWriter, status int, err error) {
	h.logger.Warn("api-request-failed", zap.Int("status", status), zap.Error(err))
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
