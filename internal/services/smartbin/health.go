package smartbin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/smartbin/internal/services/journal"
)

// HealthService is the name the gRPC health server reports under.
const HealthService = "smartbin"

// JournalStatus is the view of the event journal the health report needs.
type JournalStatus interface {
	LastErrorAge() time.Duration
	Count(t journal.EventType) int64
}

type healthHandler struct {
	ch      ChannelStatus
	journal JournalStatus
	state   func() State
}

// NewHealthHandler serves /healthz. journal may be nil when no sink is set.
func NewHealthHandler(ch ChannelStatus, j JournalStatus, state func() State) http.Handler {
	return &healthHandler{ch: ch, journal: j, state: state}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status            string  `json:"status"`
		BrokerConnected   bool    `json:"broker_connected"`
		OutboxPending     int     `json:"outbox_pending"`
		State             string  `json:"state"`
		LastJournalErrorS float64 `json:"last_journal_error_age_sec,omitempty"`
		JournalDeposits   *int64  `json:"journal_deposits,omitempty"`
	}
	st := status{
		BrokerConnected: h.ch.IsConnected(),
		OutboxPending:   h.ch.Pending(),
		State:           h.state().String(),
	}
	journalOK := true
	if h.journal != nil {
		age := h.journal.LastErrorAge()
		st.LastJournalErrorS = age.Seconds()
		n := h.journal.Count(journal.EventDeposit)
		st.JournalDeposits = &n
		journalOK = age > 30*time.Second
	}

	// degraded: il cestino funziona comunque, i messaggi restano in coda
	if st.BrokerConnected && journalOK {
		st.Status = "ok"
	} else {
		st.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// Handler /readyz: 200 solo con il broker connesso.
type readyHandler struct {
	ch ChannelStatus
}

func NewReadyHandler(ch ChannelStatus) http.Handler {
	return &readyHandler{ch: ch}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.ch.IsConnected()
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}

// WatchHealth mirrors broker connectivity into the gRPC health server until
// ctx ends, then marks everything NOT_SERVING.
func WatchHealth(ctx context.Context, hs *health.Server, ch ChannelStatus, every time.Duration) {
	if every <= 0 {
		every = 5 * time.Second
	}
	set := func() {
		st := healthpb.HealthCheckResponse_NOT_SERVING
		if ch.IsConnected() {
			st = healthpb.HealthCheckResponse_SERVING
		}
		hs.SetServingStatus(HealthService, st)
		hs.SetServingStatus("", st)
	}
	set()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			set()
		}
	}
}
