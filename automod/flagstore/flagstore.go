package flagstore

import (
	"context"
	"slices"
)

// Flags applied to domains (keyed by registrable domain)
const (
	// learned from a prior high-confidence Danger assessment; treated as a blacklist hit by the reputation checker
	FlagBlacklisted = "blacklisted"
	// manually cleared by an admin; suppresses FlagBlacklisted learning for the domain
	FlagReviewed = "reviewed"
)

type FlagStore interface {
	Get(ctx context.Context, key string) ([]string, error)
	Add(ctx context.Context, key string, flags []string) error
	Remove(ctx context.Context, key string, flags []string) error
}

// Helper to check whether a key currently has a given flag
func HasFlag(ctx context.Context, fs FlagStore, key, flag string) (bool, error) {
	l, err := fs.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return slices.Contains(l, flag), nil
}

func dedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}
