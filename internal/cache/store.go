package cache

import (
	"context"
	"time"
)

// Store is the byte-level backend under the Layer. Implementations report errors; the Layer
// decides to swallow them.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int, error)
	// DeleteMatch walks the keys under prefix once and removes those matching any of
	// patterns, where '*' is the only wildcard. No patterns removes every key under prefix.
	DeleteMatch(ctx context.Context, prefix string, patterns ...string) (int, error)
	Close() error
}

func matchAny(patterns []string, key string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if globMatch(p, key) {
			return true
		}
	}
	return false
}

// globMatch reports whether s matches pattern with '*' as the only metacharacter.
func globMatch(pattern, s string) bool {
	px, sx := 0, 0
	starP, starS := -1, 0
	for sx < len(s) {
		switch {
		case px < len(pattern) && pattern[px] == '*':
			starP, starS = px, sx
			px++
		case px < len(pattern) && pattern[px] == s[sx]:
			px++
			sx++
		case starP >= 0:
			starS++
			px, sx = starP+1, starS
		default:
			return false
		}
	}
	for px < len(pattern) && pattern[px] == '*' {
		px++
	}
	return px == len(pattern)
}
