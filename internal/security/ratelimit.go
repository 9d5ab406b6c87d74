package security

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// RateLimiter enforces sliding-window request limits. Counters are
// persisted as one JSON timestamp list per identifier so limits hold
// across processes. There is no cross-process locking: concurrent requests
// for the same identifier can each read the same counter and both pass.
// That weak consistency is accepted by design.
type RateLimiter struct {
	dir string
	log *EventLog
}

func NewRateLimiter(dir string, log *EventLog) *RateLimiter {
	return &RateLimiter{dir: dir, log: log}
}

// Allow records one request for identifier and reports whether it fits
// inside the window. Exactly maxAttempts requests are admitted per window;
// capacity returns as recorded timestamps age out.
func (r *RateLimiter) Allow(identifier string, maxAttempts int, window time.Duration) bool {
	return r.allow(identifier, maxAttempts, window, "", "")
}

// AllowRequest is Allow with client context for the security log.
func (r *RateLimiter) AllowRequest(identifier string, maxAttempts int, window time.Duration, ip, userAgent string) bool {
	return r.allow(identifier, maxAttempts, window, ip, userAgent)
}

func (r *RateLimiter) allow(identifier string, maxAttempts int, window time.Duration, ip, userAgent string) bool {
	path := r.counterPath(identifier)

	var attempts []int64
	if raw, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(raw, &attempts)
	}

	// Discard entries that have aged out of the window.
	now := time.Now().Unix()
	cutoff := now - int64(window.Seconds())
	kept := attempts[:0]
	for _, ts := range attempts {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= maxAttempts {
		r.log.Record("Rate limit exceeded", identifier, ip, userAgent)
		return false
	}

	kept = append(kept, now)
	if raw, err := json.Marshal(kept); err == nil {
		_ = os.WriteFile(path, raw, 0o600)
	}

	return true
}

func (r *RateLimiter) counterPath(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return filepath.Join(r.dir, "ratelimit_"+hex.EncodeToString(sum[:])+".json")
}
