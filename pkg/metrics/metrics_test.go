package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewExposesRegisteredCollectors(t *testing.T) {
	m, handler := New()

	m.BlocksSealed.Inc()
	m.TransactionsAdmitted.Inc()
	m.RecordRejection("replay")
	m.ObserveStats(3, 42)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"ledger_blocks_sealed_total 1",
		"ledger_transactions_admitted_total 1",
		`ledger_transaction_rejections_total{reason="replay"} 1`,
		"ledger_current_difficulty 3",
		"ledger_pending_pool_size 42",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
