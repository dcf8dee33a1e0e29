package setstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Names of the sets consulted by the signal checkers
const (
	SetTrustedDomains   = "trusted-domains"
	SetBlacklistDomains = "blacklist-domains"
	SetShorteners       = "shortener-domains"
	SetProtectedBrands  = "protected-brands"
	SetSuspiciousTLDs   = "suspicious-tlds"
)

type SetStore interface {
	// Exact membership check
	InSet(ctx context.Context, name, val string) (bool, error)
	// Checks a hostname against a set of domains: matches if the host, or any parent domain of it, is in the set, or if any glob pattern in the set matches the host
	MatchDomain(ctx context.Context, name, host string) (bool, error)
	// Returns all (non-pattern) members of a set, sorted
	SetMembers(ctx context.Context, name string) ([]string, error)
}

type memSet struct {
	vals  map[string]bool
	globs []glob.Glob
}

type MemSetStore struct {
	lk   sync.RWMutex
	Sets map[string]*memSet
}

var _ SetStore = (*MemSetStore)(nil)

func NewMemSetStore() *MemSetStore {
	return &MemSetStore{
		Sets: make(map[string]*memSet),
	}
}

func isPattern(v string) bool {
	return strings.ContainsAny(v, "*?[{")
}

// Replaces (or creates) the named set. Values are lower-cased; values containing glob metacharacters are compiled as patterns with '.' as the separator.
func (s *MemSetStore) SetValues(name string, vals []string) error {
	ms := &memSet{vals: make(map[string]bool, len(vals))}
	for _, v := range vals {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if isPattern(v) {
			g, err := glob.Compile(v, '.')
			if err != nil {
				return fmt.Errorf("invalid pattern %q in set %s: %w", v, name, err)
			}
			ms.globs = append(ms.globs, g)
			continue
		}
		ms.vals[v] = true
	}
	s.lk.Lock()
	defer s.lk.Unlock()
	s.Sets[name] = ms
	return nil
}

func (s *MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	set, ok := s.Sets[name]
	if !ok {
		// NOTE: currently returns false when entire set isn't found
		return false, nil
	}
	return set.vals[strings.ToLower(val)], nil
}

func (s *MemSetStore) MatchDomain(ctx context.Context, name, host string) (bool, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	set, ok := s.Sets[name]
	if !ok {
		return false, nil
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	// the host and each parent domain, against exact values then patterns
	for d := host; d != ""; {
		if set.vals[d] {
			return true, nil
		}
		for _, g := range set.globs {
			if g.Match(d) {
				return true, nil
			}
		}
		_, rest, found := strings.Cut(d, ".")
		if !found {
			break
		}
		d = rest
	}
	return false, nil
}

func (s *MemSetStore) SetMembers(ctx context.Context, name string) ([]string, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	set, ok := s.Sets[name]
	if !ok {
		return []string{}, nil
	}
	out := make([]string, 0, len(set.vals))
	for v := range set.vals {
		out = append(out, v)
	}
	slices.Sort(out)
	return out, nil
}

// Loads sets from a file mapping set names to lists of values. Files ending in ".yaml" or ".yml" are parsed as YAML, anything else as JSON.
func (s *MemSetStore) LoadFromFile(p string) error {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return s.LoadFromFileYAML(p)
	default:
		return s.LoadFromFileJSON(p)
	}
}

func readAll(p string) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func (s *MemSetStore) LoadFromFileJSON(p string) error {
	raw, err := readAll(p)
	if err != nil {
		return err
	}
	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return err
	}
	return s.loadSets(sets)
}

func (s *MemSetStore) LoadFromFileYAML(p string) error {
	raw, err := readAll(p)
	if err != nil {
		return err
	}
	var sets map[string][]string
	if err := yaml.Unmarshal(raw, &sets); err != nil {
		return err
	}
	return s.loadSets(sets)
}

func (s *MemSetStore) loadSets(sets map[string][]string) error {
	for name, l := range sets {
		if err := s.SetValues(name, l); err != nil {
			return err
		}
	}
	return nil
}
