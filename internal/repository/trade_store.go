package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"PairTrader/internal/domain/models"
	"PairTrader/pkg/logger"
)

// FileStore persists the open-legs list and the profit ledger as JSON
// files. Writes go through a temp file and rename so a crash never
// leaves a half-written book; unreadable or corrupt files degrade to an
// empty list with a warning. Implements domain repository.TradeStore.
//
// Legs are stored flat in entry order, two per trade, so the list
// always has even length as long as only AppendPair and Remove touch it.
type FileStore struct {
	tradesPath  string
	profitsPath string
	log         *logger.Logger
}

func NewFileStore(tradesPath, profitsPath string, log *logger.Logger) *FileStore {
	return &FileStore{
		tradesPath:  tradesPath,
		profitsPath: profitsPath,
		log:         log,
	}
}

// Load returns the open legs. Missing file means no open trades.
func (s *FileStore) Load() []models.TradeLeg {
	var legs []models.TradeLeg
	if !s.read(s.tradesPath, &legs) {
		return nil
	}
	if len(legs)%2 != 0 {
		s.log.Warn("open-legs file has odd length, trailing leg ignored",
			logger.String("file", s.tradesPath),
			logger.Int("legs", len(legs)))
	}
	return legs
}

// AppendPair adds both legs of a new trade atomically, stamped with the
// pair key and a shared entry time.
func (s *FileStore) AppendPair(leg1, leg2 models.TradeLeg, pairKey string) error {
	now := time.Now().UTC()
	leg1.PairKey, leg2.PairKey = pairKey, pairKey
	leg1.EntryTime, leg2.EntryTime = now, now

	legs := s.Load()
	legs = append(legs, leg1, leg2)
	return s.write(s.tradesPath, legs)
}

// Remove deletes the legs at the given indices. Indices are applied in
// descending order so earlier removals do not shift later ones; out of
// range indices are ignored.
func (s *FileStore) Remove(indices []int) error {
	if len(indices) == 0 {
		return nil
	}
	legs := s.Load()

	sorted := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for _, idx := range sorted {
		if idx < 0 || idx >= len(legs) {
			s.log.Warn("ignoring out-of-range leg index",
				logger.Int("index", idx),
				logger.Int("legs", len(legs)))
			continue
		}
		legs = append(legs[:idx], legs[idx+1:]...)
	}
	return s.write(s.tradesPath, legs)
}

// AppendProfit appends one closed trade to the ledger. Records are
// never rewritten.
func (s *FileStore) AppendProfit(rec models.ProfitRecord) error {
	var records []models.ProfitRecord
	s.read(s.profitsPath, &records)
	records = append(records, rec)
	return s.write(s.profitsPath, records)
}

// Profits returns the full ledger.
func (s *FileStore) Profits() []models.ProfitRecord {
	var records []models.ProfitRecord
	s.read(s.profitsPath, &records)
	return records
}

// read loads JSON from path into dest. Returns false on any problem;
// corruption is logged, a missing file is not.
func (s *FileStore) read(path string, dest interface{}) bool {
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("state file unreadable, treating as empty",
				logger.String("file", path),
				logger.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(b, dest); err != nil {
		s.log.Warn("state file corrupt, treating as empty",
			logger.String("file", path),
			logger.Error(err))
		return false
	}
	return true
}

// write marshals v and replaces path atomically via rename.
func (s *FileStore) write(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
