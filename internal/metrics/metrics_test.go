package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"sidcontrol/internal/bttfn"
	"sidcontrol/internal/travel"
)

func TestObserverCounters(t *testing.T) {
	m := New()
	m.RequestSent()
	m.RequestSent()
	m.RequestTimedOut(1)
	m.RequestTimedOut(2)
	m.PacketDropped("checksum")
	m.NotificationReceived(bttfn.CmdTimeTravel)

	if got := testutil.ToFloat64(m.requests); got != 2 {
		t.Fatalf("requests = %v", got)
	}
	if got := testutil.ToFloat64(m.failures); got != 2 {
		t.Fatalf("failures = %v", got)
	}
	m.ResponseAccepted()
	if got := testutil.ToFloat64(m.failures); got != 0 {
		t.Fatalf("failures after response = %v", got)
	}
	if got := testutil.ToFloat64(m.drops.WithLabelValues("checksum")); got != 1 {
		t.Fatalf("checksum drops = %v", got)
	}
}

func TestPhaseChanged(t *testing.T) {
	m := New()
	m.PhaseChanged(travel.PhaseChange{From: travel.PhaseIdle, To: travel.PhaseAccelerating,
		Origin: travel.OriginNetwork, Sync: travel.NetworkSynced})
	m.PhaseChanged(travel.PhaseChange{From: travel.PhaseAccelerating, To: travel.PhaseTunnel})
	if got := testutil.ToFloat64(m.phase); got != float64(travel.PhaseTunnel) {
		t.Fatalf("phase = %v", got)
	}
	m.PhaseChanged(travel.PhaseChange{From: travel.PhaseTunnel, To: travel.PhaseIdle, Aborted: true})

	if got := testutil.ToFloat64(m.sessions.WithLabelValues("bttfn", "network")); got != 1 {
		t.Fatalf("sessions = %v", got)
	}
	if got := testutil.ToFloat64(m.aborts); got != 1 {
		t.Fatalf("aborts = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.TriggerDropped(travel.OriginButton, "busy")
	m.LinkLost()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`sid_trigger_dropped_total{origin="button",reason="busy"} 1`,
		`sid_bttfn_link_losses_total 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
