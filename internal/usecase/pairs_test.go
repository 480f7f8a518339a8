package usecase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairTrader/internal/domain/models"
)

func writePairFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pairs.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPairs(t *testing.T) {
	path := writePairFile(t, `Pair: AAPL and MSFT, Profit: 412.50
Pair: KO and PEP, Profit: -12.3
`)
	pairs, err := LoadPairs(path, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []models.Pair{
		{T1: "AAPL", T2: "MSFT"},
		{T1: "KO", T2: "PEP"},
	}, pairs)
}

func TestLoadPairsSkipsMalformedLines(t *testing.T) {
	path := writePairFile(t, `Pair: AAPL and MSFT, Profit: 1.0
this line is garbage
Pair: KO and
Pair: XOM and CVX, Profit: 2.0
`)
	pairs, err := LoadPairs(path, testLogger(t))
	require.NoError(t, err)
	assert.Len(t, pairs, 2)
}

func TestLoadPairsDeduplicatesByKey(t *testing.T) {
	path := writePairFile(t, `Pair: AAPL and MSFT, Profit: 1.0
Pair: MSFT and AAPL, Profit: 2.0
`)
	pairs, err := LoadPairs(path, testLogger(t))
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
}

func TestLoadPairsRejectsDegeneratePair(t *testing.T) {
	path := writePairFile(t, "Pair: AAPL and AAPL, Profit: 1.0\n")
	_, err := LoadPairs(path, testLogger(t))
	assert.Error(t, err) // nothing usable remains
}

func TestLoadPairsMissingFile(t *testing.T) {
	_, err := LoadPairs(filepath.Join(t.TempDir(), "nope.txt"), testLogger(t))
	assert.Error(t, err)
}
