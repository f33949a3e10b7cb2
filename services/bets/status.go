package bets

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is the lifecycle state of a bet.
type Status string

const (
	StatusPending Status = "pending" // awaiting reconciliation
	// StatusVerified is a legacy terminal state. Reconciliation never produces it;
	// it is only read back from older records.
	StatusVerified  Status = "verified"
	StatusPrize     Status = "prize"
	StatusFinalized Status = "finalized"
)

var statusAliases = map[string]Status{
	"pending":    StatusPending,
	"pendente":   StatusPending,
	"verified":   StatusVerified,
	"verificada": StatusVerified,
	"verificado": StatusVerified,
	"prize":      StatusPrize,
	"premio":     StatusPrize,
	"prêmio":     StatusPrize,
	"premiada":   StatusPrize,
	"finalized":  StatusFinalized,
	"finalizado": StatusFinalized,
	"finalizada": StatusFinalized,
}

var statusLabels = map[Status]string{
	StatusPending:   "pendente",
	StatusVerified:  "verificada",
	StatusPrize:     "prêmio",
	StatusFinalized: "finalizado",
}

var foldCase = cases.Fold()

// ParseStatus converts an external status string (English or pt-BR, any case) into a Status.
func ParseStatus(raw string) (Status, error) {
	key := foldCase.String(strings.TrimSpace(raw))
	if st, ok := statusAliases[key]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown bet status %q", raw)
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	return s.Valid() && s != StatusPending
}

// Label returns the pt-BR display label of s.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return cases.Title(language.BrazilianPortuguese).String(label)
	}
	return string(s)
}

// NextStatus validates a transition from cur to next. Only Pending may move, and only to a
// terminal state. On failure cur is returned unchanged.
func NextStatus(cur, next Status) (Status, error) {
	if cur == StatusPending && next.Terminal() {
		return next, nil
	}
	return cur, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next)
}

// StatusForMatches maps a match count onto the terminal state the rule assigns it.
func StatusForMatches(matchCount int, rule GameRule) Status {
	if matchCount >= rule.MinPrizeMatches {
		return StatusPrize
	}
	return StatusFinalized
}
