package cooldown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistryBlockWindow(t *testing.T) {
	r := NewRegistry()
	t0 := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	r.Block("AAPL_MSFT", t0, 1000*time.Second)

	assert.True(t, r.Blocked("AAPL_MSFT", t0))
	assert.True(t, r.Blocked("AAPL_MSFT", t0.Add(999*time.Second)))
	assert.False(t, r.Blocked("AAPL_MSFT", t0.Add(1000*time.Second)))
}

func TestRegistryUnknownKeyIsFree(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Blocked("KO_PEP", time.Now()))
}

func TestRegistryReblockResetsWindow(t *testing.T) {
	r := NewRegistry()
	t0 := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	r.Block("AAPL_MSFT", t0, 10*time.Second)
	r.Block("AAPL_MSFT", t0.Add(5*time.Second), 10*time.Second)

	assert.True(t, r.Blocked("AAPL_MSFT", t0.Add(12*time.Second)))
	assert.False(t, r.Blocked("AAPL_MSFT", t0.Add(15*time.Second)))
}

func TestRegistryExpiredEntriesAreDroppedLazily(t *testing.T) {
	r := NewRegistry()
	t0 := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	r.Block("AAPL_MSFT", t0, time.Second)
	assert.False(t, r.Blocked("AAPL_MSFT", t0.Add(2*time.Second)))

	r.mu.RLock()
	_, present := r.until["AAPL_MSFT"]
	r.mu.RUnlock()
	assert.False(t, present)
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()
	t0 := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	r.Block("AAPL_MSFT", t0, 100*time.Second)
	r.Block("KO_PEP", t0, time.Second)

	snap := r.Snapshot(t0.Add(10 * time.Second))
	assert.Len(t, snap, 1)
	assert.Equal(t, t0.Add(100*time.Second), snap["AAPL_MSFT"])
}
