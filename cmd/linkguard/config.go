package main

import (
	"fmt"
	"os"
	"time"

	"github.com/linkguard/linkguard/automod/moderation"
	"github.com/linkguard/linkguard/automod/setstore"
	"github.com/linkguard/linkguard/automod/signals"
	"github.com/linkguard/linkguard/automod/threat"

	"gopkg.in/yaml.v3"
)

// Moderation and security policy, loaded from a YAML file. Fields missing from the file keep their defaults.
type PolicyConfig struct {
	Thresholds threat.Thresholds `yaml:"thresholds"`
	MinQuorum  int               `yaml:"min_quorum"`
	Moderation moderation.Policy `yaml:"moderation"`

	// per-checker timeout and weight
	Checkers map[signals.Kind]signals.CheckerConfig `yaml:"checkers"`
	// per-checker cache TTL; zero means the checker's default
	CacheTTL map[signals.Kind]time.Duration `yaml:"cache_ttl,omitempty"`

	// named domain lists (see setstore), merged over the defaults
	Sets map[string][]string `yaml:"sets"`
	// pongo2 notice template overrides, by action name (or "caution")
	Notices map[string]string `yaml:"notices,omitempty"`

	DNSBLZones      []string      `yaml:"dnsbl_zones"`
	DomainAgeWindow time.Duration `yaml:"domain_age_window"`
	MaxRedirects    int           `yaml:"max_redirects"`

	MaxLinks       int           `yaml:"max_links"`
	LearnThreshold float64       `yaml:"learn_threshold"`
	OutcomeTTL     time.Duration `yaml:"outcome_ttl"`
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Thresholds: threat.DefaultThresholds(),
		MinQuorum:  threat.DefaultMinQuorum,
		Moderation: moderation.DefaultPolicy(),
		Checkers: map[signals.Kind]signals.CheckerConfig{
			signals.KindReputation:    {Timeout: 2 * time.Second, Weight: 1.5},
			signals.KindTLS:           {Timeout: 3 * time.Second, Weight: 0.8},
			signals.KindDomainAge:     {Timeout: 3 * time.Second, Weight: 1.0},
			signals.KindShortener:     {Timeout: 5 * time.Second, Weight: 1.0},
			signals.KindHomograph:     {Timeout: time.Second, Weight: 1.2},
			signals.KindAIContent:     {Timeout: 10 * time.Second, Weight: 1.5},
			signals.KindWebReputation: {Timeout: 5 * time.Second, Weight: 0.8},
		},
		CacheTTL: map[signals.Kind]time.Duration{},
		Sets: map[string][]string{
			setstore.SetTrustedDomains: {
				"google.com",
				"youtube.com",
				"github.com",
				"wikipedia.org",
				"discord.com",
				"discord.gg",
				"twitter.com",
				"x.com",
				"reddit.com",
				"stackoverflow.com",
				"microsoft.com",
				"apple.com",
				"amazon.com",
			},
			setstore.SetBlacklistDomains: {},
			setstore.SetShorteners: {
				"bit.ly",
				"tinyurl.com",
				"t.co",
				"goo.gl",
				"ow.ly",
				"is.gd",
				"buff.ly",
				"rebrand.ly",
				"cutt.ly",
				"shorturl.at",
			},
			setstore.SetProtectedBrands: {
				"paypal.com",
				"google.com",
				"microsoft.com",
				"apple.com",
				"amazon.com",
				"discord.com",
				"steampowered.com",
				"netflix.com",
				"facebook.com",
				"instagram.com",
			},
			setstore.SetSuspiciousTLDs: {"tk", "ml", "ga", "cf", "gq", "xyz", "top", "zip", "click"},
		},
		DNSBLZones:      []string{"dbl.spamhaus.org", "multi.surbl.org"},
		DomainAgeWindow: signals.DefaultDomainAgeWindow,
		MaxRedirects:    signals.DefaultMaxRedirects,
		MaxLinks:        10,
		LearnThreshold:  0.9,
		OutcomeTTL:      24 * time.Hour,
	}
}

func (pc *PolicyConfig) Validate() error {
	if err := pc.Thresholds.Validate(); err != nil {
		return err
	}
	if err := pc.Moderation.Validate(); err != nil {
		return err
	}
	if pc.MinQuorum < 1 {
		return fmt.Errorf("min_quorum must be at least 1: %d", pc.MinQuorum)
	}
	if pc.LearnThreshold < 0 || pc.LearnThreshold > 1 {
		return fmt.Errorf("learn_threshold must be within [0, 1]: %f", pc.LearnThreshold)
	}
	for kind, cc := range pc.Checkers {
		if cc.Timeout < 0 {
			return fmt.Errorf("invalid timeout for checker %s: %s", kind, cc.Timeout)
		}
		if cc.Weight <= 0 {
			return fmt.Errorf("weight for checker %s must be positive: %f", kind, cc.Weight)
		}
	}
	return nil
}

// Parses a YAML policy document over the defaults. Sets present in the document replace the default list of the same name.
func ParsePolicyConfig(raw []byte) (*PolicyConfig, error) {
	pc := DefaultPolicyConfig()
	defaultSets := pc.Sets
	pc.Sets = nil
	if err := yaml.Unmarshal(raw, &pc); err != nil {
		return nil, fmt.Errorf("parsing policy config: %w", err)
	}
	for name, l := range defaultSets {
		if _, ok := pc.Sets[name]; ok {
			continue
		}
		if pc.Sets == nil {
			pc.Sets = map[string][]string{}
		}
		pc.Sets[name] = l
	}
	if err := pc.Validate(); err != nil {
		return nil, err
	}
	return &pc, nil
}

// Loads the policy file at path, or returns the defaults if path is empty.
func LoadPolicyConfig(path string) (*PolicyConfig, error) {
	if path == "" {
		pc := DefaultPolicyConfig()
		return &pc, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy config: %w", err)
	}
	return ParsePolicyConfig(raw)
}

// Builds an in-process set store from the policy's lists.
func (pc *PolicyConfig) SetStore() (*setstore.MemSetStore, error) {
	sets := setstore.NewMemSetStore()
	for name, l := range pc.Sets {
		if err := sets.SetValues(name, l); err != nil {
			return nil, fmt.Errorf("loading set %s: %w", name, err)
		}
	}
	return sets, nil
}

// Renders the policy as YAML, with the same field names ParsePolicyConfig reads.
func (pc *PolicyConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(pc)
}
