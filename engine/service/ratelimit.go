package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/moizaamir12/vsync-workflow-sub000/engine/store"
)

// RateLimiter enforces a sliding one-minute window per (slug, hashed-ip)
// pair for public runs, backed by the Store's append-only hit ledger.
type RateLimiter struct {
	st     store.Store
	limit  int
	window time.Duration
}

func NewRateLimiter(st store.Store, limit int) *RateLimiter {
	if limit <= 0 {
		limit = 10
	}
	return &RateLimiter{st: st, limit: limit, window: time.Minute}
}

// Allow records this attempt and reports whether it falls within the
// window's limit. ip is hashed here so the ledger never stores raw IPs.
func (r *RateLimiter) Allow(ctx context.Context, slug, ip string) (bool, error) {
	ipHash := HashIP(ip)
	since := time.Now().Add(-r.window)
	count, err := r.st.CountRateLimitHits(ctx, slug, ipHash, since)
	if err != nil {
		return false, fmt.Errorf("count rate limit hits: %w", err)
	}
	if count >= r.limit {
		return false, nil
	}
	if err := r.st.RecordRateLimitHit(ctx, slug, ipHash, time.Now()); err != nil {
		return false, fmt.Errorf("record rate limit hit: %w", err)
	}
	return true, nil
}

// HashIP reduces a client IP to the first 16 hex characters of its SHA-256
// digest, matching the (slug, sha256(ip)[:16]) key the ledger is keyed on.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])[:16]
}

const slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateUniqueSlug produces a URL-safe slug for a public run link,
// retrying on collision up to maxAttempts before falling back to a longer
// random suffix that is vanishingly unlikely to collide.
func GenerateUniqueSlug(ctx context.Context, st store.Store, base string, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	candidate := slugify(base)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		trial := candidate
		if attempt > 0 {
			suffix, err := randomSlugSuffix(4)
			if err != nil {
				return "", err
			}
			trial = candidate + "-" + suffix
		}
		exists, err := st.SlugExists(ctx, trial)
		if err != nil {
			return "", fmt.Errorf("slug exists check: %w", err)
		}
		if !exists {
			return trial, nil
		}
	}
	fallback, err := randomSlugSuffix(12)
	if err != nil {
		return "", err
	}
	return candidate + "-" + fallback, nil
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "run"
	}
	return out
}

func randomSlugSuffix(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(slugAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random slug suffix: %w", err)
		}
		out[i] = slugAlphabet[idx.Int64()]
	}
	return string(out), nil
}
