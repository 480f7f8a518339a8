package usecase

import (
	"bufio"
	"fmt"
	"os"
	"regexp"

	"PairTrader/internal/domain/models"
	"PairTrader/pkg/logger"
)

// Pair file line format, one pair per line:
//
//	Pair: AAPL and MSFT, Profit: 123.45
//
// The trailing profit figure comes from the research stage and is not
// used by the engine; it is accepted and ignored.
var pairLine = regexp.MustCompile(`^Pair:\s*(\S+)\s+and\s+(\S+)\s*,`)

// LoadPairs reads the candidate pair universe from path. A missing or
// unreadable file is an error; malformed lines are skipped with a warning.
func LoadPairs(path string, log *logger.Logger) ([]models.Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pair file: %w", err)
	}
	defer f.Close()

	var pairs []models.Pair
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		m := pairLine.FindStringSubmatch(line)
		if m == nil {
			log.Warn("skipping malformed pair line",
				logger.String("file", path),
				logger.Int("line", lineNo))
			continue
		}
		p := models.Pair{T1: m[1], T2: m[2]}
		if p.T1 == p.T2 {
			log.Warn("skipping degenerate pair",
				logger.String("ticker", p.T1),
				logger.Int("line", lineNo))
			continue
		}
		if seen[p.Key()] {
			continue
		}
		seen[p.Key()] = true
		pairs = append(pairs, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pair file: %w", err)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("pair file %s contains no usable pairs", path)
	}

	log.Info("loaded pair universe",
		logger.String("file", path),
		logger.Int("pairs", len(pairs)))
	return pairs, nil
}
