package bets

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Field-name variants seen across provider payloads, in order of preference.
var (
	numbersFields     = []string{"numeros", "dezenas", "listaDezenas", "dezenasSorteadasOrdemSorteio"}
	cloversFields     = []string{"trevos", "trevosSorteados"}
	contestFields     = []string{"concurso", "numero"}
	modalityFields    = []string{"loteria", "jogo", "tipoJogo"}
	dateFields        = []string{"data", "dataApuracao"}
	tiersFields       = []string{"premiacoes", "listaRateioPremio"}
	tierLabelFields   = []string{"acertos", "descricao", "descricaoFaixa"}
	tierWinnersFields = []string{"ganhadores", "vencedores", "numeroDeGanhadores"}
	tierAmountFields  = []string{"premio", "valorPremio"}
	rolloverFields    = []string{"acumulou", "acumulado"}
	nextContestFields = []string{"proxConcurso", "numeroConcursoProximo"}
	nextDateFields    = []string{"dataProxConcurso", "dataProximoConcurso"}
	jackpotFields     = []string{"valorEstimadoProximoConcurso", "estimativaProxConcurso", "acumuladaProxConcurso", "valorAcumuladoProximoConcurso"}
)

var dateLayouts = []string{"02/01/2006", time.RFC3339, "2006-01-02"}

// NormalizeDrawResult collapses a provider payload into a DrawResult. A payload without
// winning numbers means the contest has not been drawn and yields ErrNotYetDrawn.
func NormalizeDrawResult(payload []byte) (DrawResult, error) {
	if !gjson.ValidBytes(payload) {
		return DrawResult{}, fmt.Errorf("%w: invalid json", ErrMalformedResult)
	}
	doc := gjson.ParseBytes(payload)
	if !doc.IsObject() {
		return DrawResult{}, fmt.Errorf("%w: payload is not an object", ErrMalformedResult)
	}

	numbers, err := intList(firstOf(doc, numbersFields...))
	if err != nil {
		return DrawResult{}, fmt.Errorf("%w: winning numbers: %v", ErrMalformedResult, err)
	}
	contest, err := intValue(firstOf(doc, contestFields...))
	if err != nil {
		return DrawResult{}, fmt.Errorf("%w: contest: %v", ErrMalformedResult, err)
	}
	if len(numbers) == 0 {
		return DrawResult{}, fmt.Errorf("%w: contest %d has no winning numbers", ErrNotYetDrawn, contest)
	}
	clovers, err := intList(firstOf(doc, cloversFields...))
	if err != nil {
		return DrawResult{}, fmt.Errorf("%w: clovers: %v", ErrMalformedResult, err)
	}

	result := DrawResult{
		ModalityID:      NormalizeModalityID(firstOf(doc, modalityFields...).String()),
		ContestNumber:   contest,
		DrawDate:        dateValue(firstOf(doc, dateFields...)),
		WinningNumbers:  numbers,
		WinningClovers:  clovers,
		Rollover:        firstOf(doc, rolloverFields...).Bool(),
		NextContestDate: dateValue(firstOf(doc, nextDateFields...)),
	}
	if next, err := intValue(firstOf(doc, nextContestFields...)); err == nil {
		result.NextContestNumber = next
	}
	if jackpot, err := amountValue(firstOf(doc, jackpotFields...)); err == nil {
		result.EstimatedJackpot = jackpot
	}

	for _, item := range firstOf(doc, tiersFields...).Array() {
		tier := PrizeTier{Label: strings.TrimSpace(firstOf(item, tierLabelFields...).String())}
		if winners, err := intValue(firstOf(item, tierWinnersFields...)); err == nil {
			tier.Winners = winners
		}
		amount, err := amountValue(firstOf(item, tierAmountFields...))
		if err != nil {
			return DrawResult{}, fmt.Errorf("%w: prize tier %q: %v", ErrMalformedResult, tier.Label, err)
		}
		tier.Amount = amount
		result.PrizeTiers = append(result.PrizeTiers, tier)
	}
	return result, nil
}

// CanonicalizeDraw maps a normalized result onto rule's numbering. Pools of 100 are drawn
// as "00".."99" and the provider's 0 is the rule's 100.
func CanonicalizeDraw(result DrawResult, rule GameRule) DrawResult {
	if rule.Pool != 100 {
		return result
	}
	numbers := make([]int, len(result.WinningNumbers))
	for i, n := range result.WinningNumbers {
		if n == 0 {
			n = rule.Pool
		}
		numbers[i] = n
	}
	sort.Ints(numbers)
	result.WinningNumbers = numbers
	return result
}

// ParseBRL parses a Brazilian currency string such as "R$ 42.932,72" or a plain decimal.
func ParseBRL(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero, nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return d, nil
}

// firstOf returns the first field among names that is present and non-empty.
func firstOf(doc gjson.Result, names ...string) gjson.Result {
	for _, name := range names {
		r := doc.Get(name)
		if !r.Exists() || r.Type == gjson.Null {
			continue
		}
		if r.IsArray() && len(r.Array()) == 0 {
			continue
		}
		if r.Type == gjson.String && strings.TrimSpace(r.Str) == "" {
			continue
		}
		return r
	}
	return gjson.Result{}
}

func intValue(r gjson.Result) (int, error) {
	switch r.Type {
	case gjson.Number:
		return int(r.Int()), nil
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(r.Str))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", r.Str)
		}
		return n, nil
	case gjson.Null:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected value %s", r.Raw)
	}
}

// intList reads an array of numbers or numeric strings ("04") into a sorted slice.
func intList(r gjson.Result) ([]int, error) {
	if !r.Exists() {
		return nil, nil
	}
	if !r.IsArray() {
		return nil, fmt.Errorf("expected array, got %s", r.Raw)
	}
	items := r.Array()
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, err := intValue(item)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func amountValue(r gjson.Result) (decimal.Decimal, error) {
	switch r.Type {
	case gjson.Number:
		return decimal.NewFromString(r.Raw)
	case gjson.String:
		return ParseBRL(r.Str)
	default:
		return decimal.Zero, nil
	}
}

func dateValue(r gjson.Result) time.Time {
	s := strings.TrimSpace(r.String())
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
