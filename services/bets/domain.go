// Package bets validates lottery bets, expands repeated ("teimosinha") bets, composes
// group bets and reconciles bets against official draw results.
package bets

import (
	"time"

	"github.com/shopspring/decimal"
)

// CloverRule bounds the secondary "trevo" set some modalities draw alongside the main numbers.
type CloverRule struct {
	Min  int `json:"min" yaml:"min"`
	Max  int `json:"max" yaml:"max"`
	Pool int `json:"pool" yaml:"pool"`
}

// GameRule is the selection rule for one lottery modality.
type GameRule struct {
	ModalityID      string      `json:"modality_id" yaml:"id"`
	Name            string      `json:"name" yaml:"name"`
	MinNumbers      int         `json:"min_numbers" yaml:"min_numbers"`
	MaxNumbers      int         `json:"max_numbers" yaml:"max_numbers"`
	Pool            int         `json:"pool" yaml:"pool"`
	Multipliers     []int       `json:"multipliers" yaml:"multipliers"`
	MinPrizeMatches int         `json:"min_prize_matches" yaml:"min_prize_matches"`
	Clovers         *CloverRule `json:"clovers,omitempty" yaml:"clovers,omitempty"`
}

// AllowsRepeat reports whether n is one of the rule's teimosinha multipliers.
func (r GameRule) AllowsRepeat(n int) bool {
	for _, m := range r.Multipliers {
		if m == n {
			return true
		}
	}
	return false
}

// Repetition describes where a bet sits inside a teimosinha batch.
type Repetition struct {
	IsRepeating   bool   `json:"is_repeating"`
	RepeatCount   int    `json:"repeat_count"`
	SequenceIndex int    `json:"sequence_index"`
	SequenceTotal int    `json:"sequence_total"`
	BatchID       string `json:"batch_id,omitempty"`
}

// Participant is a member of a group bet.
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// GroupSpec is a bet shared among named participants. The creator is always Participants[0].
type GroupSpec struct {
	Name         string        `json:"name"`
	Creator      Participant   `json:"creator"`
	Participants []Participant `json:"participants"`
}

// BetSpec is a single bet on one contest.
type BetSpec struct {
	ID            string      `json:"id"`
	OwnerID       string      `json:"owner_id"`
	ModalityID    string      `json:"modality_id"`
	ContestNumber int         `json:"contest_number"`
	Numbers       []int       `json:"numbers"`
	Clovers       []int       `json:"clovers,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	Repetition    Repetition  `json:"repetition"`
	Group         *GroupSpec  `json:"group,omitempty"`
	Status        Status      `json:"status"`
	Consulted     bool        `json:"consulted"`
	CachedResult  *DrawResult `json:"cached_result,omitempty"`
	VerifiedAt    time.Time   `json:"verified_at,omitempty"`
}

// PrizeTier maps a match-count bracket to its winners and payout.
type PrizeTier struct {
	Label   string          `json:"label"`
	Winners int             `json:"winners"`
	Amount  decimal.Decimal `json:"amount"`
}

// DrawResult is the canonical official result of one contest.
type DrawResult struct {
	ModalityID        string          `json:"modality_id"`
	ContestNumber     int             `json:"contest_number"`
	DrawDate          time.Time       `json:"draw_date"`
	WinningNumbers    []int           `json:"winning_numbers"`
	WinningClovers    []int           `json:"winning_clovers,omitempty"`
	PrizeTiers        []PrizeTier     `json:"prize_tiers"`
	Rollover          bool            `json:"rollover"`
	NextContestNumber int             `json:"next_contest_number,omitempty"`
	NextContestDate   time.Time       `json:"next_contest_date,omitempty"`
	EstimatedJackpot  decimal.Decimal `json:"estimated_jackpot"`
}

// Outcome is the result of reconciling one bet.
type Outcome struct {
	BetID            string      `json:"bet_id"`
	MatchCount       int         `json:"match_count"`
	CloverMatchCount int         `json:"clover_match_count"`
	Status           Status      `json:"status"`
	FromCache        bool        `json:"from_cache"`
	Result           *DrawResult `json:"result,omitempty"`
}

// Default rule values used when a modality id is not recognised.
const (
	DefaultMinNumbers      = 6
	DefaultMaxNumbers      = 15
	DefaultPool            = 60
	DefaultMinPrizeMatches = 4
)

// DefaultMultipliers are the teimosinha multipliers of the fallback rule.
var DefaultMultipliers = []int{2, 3, 4, 6, 8, 9, 12, 18, 24}
