package output

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/daisymeal/cyberdefense/internal/domain"
)

// SourceStats counts what one source address has sent.
type SourceStats struct {
	SourceIP   string            `json:"source_ip"`
	Inspected  int64             `json:"inspected"`
	Dropped    int64             `json:"dropped"`
	Blocked    int64             `json:"blocked"`
	LastThreat domain.ThreatType `json:"last_threat,omitempty"`
	LastSeen   time.Time         `json:"last_seen"`
}

func (s SourceStats) Threats() int64 {
	return s.Dropped + s.Blocked
}

// SourceTracker keeps per-source counters for the most recently seen
// sources. The least recently seen source is evicted when the cache is full.
type SourceTracker struct {
	cache *lru.Cache[string, *SourceStats]
	mu    sync.Mutex
}

func NewSourceTracker(size int) (*SourceTracker, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, *SourceStats](size)
	if err != nil {
		return nil, err
	}
	return &SourceTracker{cache: cache}, nil
}

// ObserveVerdict implements ports.VerdictObserver.
func (t *SourceTracker) ObserveVerdict(verdict domain.Verdict, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats, ok := t.cache.Get(verdict.SourceAddress)
	if !ok {
		stats = &SourceStats{SourceIP: verdict.SourceAddress}
		t.cache.Add(verdict.SourceAddress, stats)
	}

	stats.Inspected++
	stats.LastSeen = time.Now().UTC()
	switch verdict.Action {
	case domain.ActionDrop:
		stats.Dropped++
		stats.LastThreat = verdict.ThreatType
	case domain.ActionBlockAndAlert:
		stats.Blocked++
		stats.LastThreat = verdict.ThreatType
	}
}

func (t *SourceTracker) Get(source string) (SourceStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats, ok := t.cache.Peek(source)
	if !ok {
		return SourceStats{}, false
	}
	return *stats, true
}

// Top returns up to n sources ordered by threat count, then by records
// inspected. Sources with no threats are included after the offenders.
// n <= 0 returns every tracked source.
func (t *SourceTracker) Top(n int) []SourceStats {
	t.mu.Lock()
	values := t.cache.Values()
	out := make([]SourceStats, len(values))
	for i, v := range values {
		out[i] = *v
	}
	t.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Threats() != out[j].Threats() {
			return out[i].Threats() > out[j].Threats()
		}
		if out[i].Inspected != out[j].Inspected {
			return out[i].Inspected > out[j].Inspected
		}
		return out[i].SourceIP < out[j].SourceIP
	})

	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func (t *SourceTracker) Len() int {
	return t.cache.Len()
}
