package breakglass

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// issueRateLimit tracks per-issuer grant issuance within a rolling
// one-hour window so a compromised admin account cannot mint emergency
// credentials without bound.
type issueRateLimit struct {
	mu      sync.Mutex
	entries map[uuid.UUID][]time.Time
}

func newIssueRateLimit() *issueRateLimit {
	return &issueRateLimit{entries: make(map[uuid.UUID][]time.Time)}
}

// allow prunes timestamps older than an hour and admits the issuance if
// the issuer is under maxPerHour. The caller supplies now so tests can
// inject a deterministic clock.
func (rl *issueRateLimit) allow(issuer uuid.UUID, now time.Time, maxPerHour int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-1 * time.Hour)
	existing := rl.entries[issuer]
	pruned := existing[:0]
	for _, ts := range existing {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) >= maxPerHour {
		rl.entries[issuer] = pruned
		return false
	}

	rl.entries[issuer] = append(pruned, now)
	return true
}
