package bets

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDrawResult_GuidiShape(t *testing.T) {
	payload := []byte(`{
		"loteria": "megasena",
		"concurso": 2500,
		"data": "20/07/2022",
		"dezenas": ["50", "05", "01", "12", "24", "37"],
		"premiacoes": [
			{"acertos": "Sena", "vencedores": 0, "premio": "R$ 0,00"},
			{"acertos": "Quina", "vencedores": 55, "premio": "R$ 42.932,72"},
			{"acertos": "Quadra", "vencedores": 3867, "premio": "R$ 872,33"}
		],
		"acumulou": true,
		"proxConcurso": "2501",
		"dataProxConcurso": "23/07/2022",
		"valorEstimadoProximoConcurso": 47000000.5
	}`)

	result, err := NormalizeDrawResult(payload)
	require.NoError(t, err)

	assert.Equal(t, "megasena", result.ModalityID)
	assert.Equal(t, 2500, result.ContestNumber)
	assert.Equal(t, time.Date(2022, 7, 20, 0, 0, 0, 0, time.UTC), result.DrawDate)
	assert.Equal(t, []int{1, 5, 12, 24, 37, 50}, result.WinningNumbers)
	assert.True(t, result.Rollover)
	assert.Equal(t, 2501, result.NextContestNumber)
	assert.Equal(t, time.Date(2022, 7, 23, 0, 0, 0, 0, time.UTC), result.NextContestDate)
	assert.True(t, decimal.RequireFromString("47000000.5").Equal(result.EstimatedJackpot))

	require.Len(t, result.PrizeTiers, 3)
	assert.Equal(t, "Quina", result.PrizeTiers[1].Label)
	assert.Equal(t, 55, result.PrizeTiers[1].Winners)
	assert.True(t, decimal.RequireFromString("42932.72").Equal(result.PrizeTiers[1].Amount))
}

func TestNormalizeDrawResult_CaixaShape(t *testing.T) {
	payload := []byte(`{
		"tipoJogo": "MAIS_MILIONARIA",
		"numero": 150,
		"dataApuracao": "01/06/2024",
		"listaDezenas": ["03", "14", "22", "31", "40", "49"],
		"trevosSorteados": ["2", "5"],
		"listaRateioPremio": [
			{"descricaoFaixa": "6 acertos + 2 trevos", "numeroDeGanhadores": 1, "valorPremio": 12000000.25}
		],
		"acumulado": false,
		"numeroConcursoProximo": 151,
		"dataProximoConcurso": "05/06/2024",
		"valorAcumuladoProximoConcurso": 0
	}`)

	result, err := NormalizeDrawResult(payload)
	require.NoError(t, err)

	assert.Equal(t, "maismilionaria", result.ModalityID)
	assert.Equal(t, 150, result.ContestNumber)
	assert.Equal(t, []int{3, 14, 22, 31, 40, 49}, result.WinningNumbers)
	assert.Equal(t, []int{2, 5}, result.WinningClovers)
	assert.False(t, result.Rollover)
	assert.Equal(t, 151, result.NextContestNumber)
	require.Len(t, result.PrizeTiers, 1)
	assert.Equal(t, "6 acertos + 2 trevos", result.PrizeTiers[0].Label)
	assert.Equal(t, 1, result.PrizeTiers[0].Winners)
	assert.True(t, decimal.RequireFromString("12000000.25").Equal(result.PrizeTiers[0].Amount))
}

func TestNormalizeDrawResult_FallsThroughEmptyVariants(t *testing.T) {
	payload := []byte(`{"concurso": 10, "numeros": [], "dezenasSorteadasOrdemSorteio": ["9", "1"]}`)
	result, err := NormalizeDrawResult(payload)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 9}, result.WinningNumbers)
}

func TestNormalizeDrawResult_Errors(t *testing.T) {
	t.Run("NotYetDrawn", func(t *testing.T) {
		_, err := NormalizeDrawResult([]byte(`{"concurso": 2600, "dezenas": []}`))
		assert.ErrorIs(t, err, ErrNotYetDrawn)
	})
	t.Run("InvalidJSON", func(t *testing.T) {
		_, err := NormalizeDrawResult([]byte(`{"concurso":`))
		assert.ErrorIs(t, err, ErrMalformedResult)
	})
	t.Run("NotAnObject", func(t *testing.T) {
		_, err := NormalizeDrawResult([]byte(`[1,2,3]`))
		assert.ErrorIs(t, err, ErrMalformedResult)
	})
	t.Run("NonNumericNumber", func(t *testing.T) {
		_, err := NormalizeDrawResult([]byte(`{"concurso": 1, "dezenas": ["01", "xx"]}`))
		assert.ErrorIs(t, err, ErrMalformedResult)
	})
	t.Run("BadAmount", func(t *testing.T) {
		_, err := NormalizeDrawResult([]byte(`{"concurso": 1, "dezenas": ["01"], "premiacoes": [{"acertos": "Sena", "premio": "R$ abc"}]}`))
		assert.ErrorIs(t, err, ErrMalformedResult)
	})
}

func TestParseBRL(t *testing.T) {
	tests := map[string]string{
		"R$ 42.932,72":    "42932.72",
		"R$ 1.234.567,00": "1234567",
		"R$ 0,00":         "0",
		"872,33":          "872.33",
		"1500.50":         "1500.5",
		"":                "0",
	}
	for in, want := range tests {
		got, err := ParseBRL(in)
		require.NoError(t, err, in)
		assert.True(t, decimal.RequireFromString(want).Equal(got), "%s: got %s", in, got)
	}

	_, err := ParseBRL("R$ dez")
	assert.Error(t, err)
}

func TestCanonicalizeDraw(t *testing.T) {
	registry := DefaultRegistry()
	lotomania, _ := registry.Lookup("lotomania")
	megasena, _ := registry.Lookup("megasena")

	drawn := DrawResult{WinningNumbers: []int{0, 13, 27, 99}}
	got := CanonicalizeDraw(drawn, lotomania)
	assert.Equal(t, []int{13, 27, 99, 100}, got.WinningNumbers)
	assert.Equal(t, []int{0, 13, 27, 99}, drawn.WinningNumbers, "input must not be modified")

	assert.Equal(t, drawn.WinningNumbers, CanonicalizeDraw(drawn, megasena).WinningNumbers)
}
