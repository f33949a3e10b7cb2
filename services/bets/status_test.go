package bets

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"pending", StatusPending},
		{"Pendente", StatusPending},
		{"PENDENTE", StatusPending},
		{" verificada ", StatusVerified},
		{"Verified", StatusVerified},
		{"prêmio", StatusPrize},
		{"PRÊMIO", StatusPrize},
		{"premio", StatusPrize},
		{"finalizado", StatusFinalized},
		{"Finalized", StatusFinalized},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if err != nil {
			t.Fatalf("ParseStatus(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseStatus("cancelada"); err == nil {
		t.Error("Expected error for unknown status")
	}
}

func TestNextStatus(t *testing.T) {
	for _, next := range []Status{StatusVerified, StatusPrize, StatusFinalized} {
		got, err := NextStatus(StatusPending, next)
		if err != nil {
			t.Fatalf("pending -> %s failed: %v", next, err)
		}
		if got != next {
			t.Errorf("Expected %s, got %s", next, got)
		}
	}

	illegal := [][2]Status{
		{StatusPending, StatusPending},
		{StatusPrize, StatusPending},
		{StatusFinalized, StatusPrize},
		{StatusVerified, StatusFinalized},
		{StatusPending, Status("lost")},
	}
	for _, tr := range illegal {
		got, err := NextStatus(tr[0], tr[1])
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tr[0], tr[1], err)
		}
		if got != tr[0] {
			t.Errorf("%s -> %s: status changed to %s on failure", tr[0], tr[1], got)
		}
	}
}

func TestStatus_Helpers(t *testing.T) {
	if StatusPending.Terminal() {
		t.Error("pending must not be terminal")
	}
	if !StatusVerified.Terminal() || !StatusPrize.Terminal() || !StatusFinalized.Terminal() {
		t.Error("verified, prize and finalized are terminal")
	}
	if Status("bogus").Valid() {
		t.Error("unknown status reported valid")
	}
	if got := StatusPrize.Label(); got != "Prêmio" {
		t.Errorf("Expected label Prêmio, got %s", got)
	}
}

func TestStatusForMatches(t *testing.T) {
	rule := GameRule{MinPrizeMatches: 4}
	if got := StatusForMatches(4, rule); got != StatusPrize {
		t.Errorf("4 matches: expected prize, got %s", got)
	}
	if got := StatusForMatches(3, rule); got != StatusFinalized {
		t.Errorf("3 matches: expected finalized, got %s", got)
	}
}
