package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// sample returns the value of the series name{labels} from Registry, or 0.
func sample(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue series
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"/bets", "/bets"},
		{"/bets/", "/bets"},
		{"/bets/stats", "/bets/stats"},
		{"/bets/reconcile", "/bets/reconcile"},
		{"/bets/7f1c9c4e-2d9b-4c55-9a7e-111111111111", "/bets/:id"},
		{"/bets/abc/reconcile", "/bets/:id/reconcile"},
		{"/rules", "/rules"},
		{"/rules/megasena", "/rules/:modality"},
		{"/draws/quina/latest", "/draws/:modality/latest"},
		{"/draws/quina/6500", "/draws/:modality/:contest"},
		{"/health", "/health"},
	}
	for _, tt := range tests {
		if got := canonicalPath(tt.in); got != tt.want {
			t.Errorf("canonicalPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInstrumentHandler(t *testing.T) {
	handler := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	labels := map[string]string{"method": "POST", "path": "/bets/:id/reconcile", "status": "202"}
	before := sample(t, "lotterybets_http_requests_total", labels)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/bets/b-1/reconcile", nil))
	after := sample(t, "lotterybets_http_requests_total", labels)

	if after-before != 1 {
		t.Fatalf("expected one request recorded, got %v", after-before)
	}
	if got := sample(t, "lotterybets_http_inflight_requests", nil); got != 0 {
		t.Fatalf("in-flight gauge = %v after request", got)
	}
}

func TestRecordHelpers(t *testing.T) {
	labels := map[string]string{"modality": "megasena", "outcome": "prize"}
	before := sample(t, "lotterybets_reconcile_runs_total", labels)
	RecordReconciliation("MegaSena", "prize", 0)
	if got := sample(t, "lotterybets_reconcile_runs_total", labels); got-before != 1 {
		t.Fatalf("reconciliation counter delta = %v", got-before)
	}

	labels = map[string]string{"modality": "unknown", "result": "success"}
	before = sample(t, "lotterybets_bets_submissions_total", labels)
	RecordSubmission("", "")
	if got := sample(t, "lotterybets_bets_submissions_total", labels); got-before != 1 {
		t.Fatalf("submission counter delta = %v", got-before)
	}

	RecordProviderFetch("quina", "not_found")
	RecordSweep(true)
	RecordReconciliation("quina", "not_yet_drawn", 25*time.Millisecond)
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordSweep(false)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lotterybets_sweeper_runs_total") {
		t.Fatal("sweeper counter missing from exposition")
	}
}
