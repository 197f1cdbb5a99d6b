// Package domains normalizes and validates the allow/block domain lists that
// constrain external web search.
//
// Domain strings are canonical set members: lowercase, leading "www."
// stripped. Every comparison in the pipeline goes through Extract so the two
// sides always agree on that form.
package domains

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/psybrarian/psybrarian/internal/log"
)

// CoreTrustedDomains is the hardcoded default trust list. These are always
// part of the allow-list even when the admin configures nothing.
var CoreTrustedDomains = []string{
	"psychedelics.com",
	"maps.org",
	"erowid.org",
	"hopkinspsychedelic.org",
	"heffter.org",
	"psychedelicscience.org",
	"dancesafe.org",
	"zendoproject.org",
}

// RuleKind distinguishes allow-list from block-list rules.
type RuleKind string

const (
	KindAllowed RuleKind = "allowed"
	KindBlocked RuleKind = "blocked"
)

// Rule is an admin-configured website rule.
type Rule struct {
	ID     string
	Title  string
	URL    string
	Domain string // derived from URL via Extract
	Kind   RuleKind
}

// RuleSource supplies the configured rules. Implemented by Store; tests
// substitute a fixture.
type RuleSource interface {
	ListRules(ctx context.Context, kind RuleKind) ([]Rule, error)
}

// Engine resolves the effective allow/block domain sets.
//
// Configuration is injected at construction rather than read from ambient
// state so tests can pin the domain sets deterministically.
type Engine struct {
	rules  RuleSource
	extra  []string // admin-configured static additions to the allow-list
	logger log.Logger
}

// NewEngine creates an Engine. rules may be nil when only static
// configuration is in play.
func NewEngine(rules RuleSource, extraAllowed []string, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{rules: rules, extra: extraAllowed, logger: logger}
}

// Extract returns the canonical domain of a URL: the host component,
// lowercased, with a leading "www." stripped. Schemeless input is retried
// with "https://" prepended. Returns "" when no host can be recovered.
func Extract(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		u, err = url.Parse("https://" + rawURL)
		if err != nil || u.Host == "" {
			return ""
		}
	}

	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Usable reports whether a domain can be handed to the search provider:
// prefixing it with "http://" must produce a syntactically valid URL whose
// host round-trips to the domain itself.
func Usable(domain string) bool {
	if domain == "" || strings.ContainsAny(domain, " \t\n") {
		return false
	}
	u, err := url.Parse("http://" + domain)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, domain)
}

// Allowed returns the effective allow-list: configured rules plus the static
// extras plus the core trust list, normalized, deduplicated, and filtered to
// usable domains. Malformed entries are skipped, never fatal.
func (e *Engine) Allowed(ctx context.Context) ([]string, error) {
	var candidates []string

	if e.rules != nil {
		rules, err := e.rules.ListRules(ctx, KindAllowed)
		if err != nil {
			return nil, fmt.Errorf("loading allowed rules: %w", err)
		}
		for _, r := range rules {
			candidates = append(candidates, r.Domain)
		}
	}
	candidates = append(candidates, e.extra...)
	candidates = append(candidates, CoreTrustedDomains...)

	return e.normalizeSet(candidates), nil
}

// Blocked returns the configured block-list only; there is no hardcoded
// component.
func (e *Engine) Blocked(ctx context.Context) ([]string, error) {
	if e.rules == nil {
		return nil, nil
	}

	rules, err := e.rules.ListRules(ctx, KindBlocked)
	if err != nil {
		return nil, fmt.Errorf("loading blocked rules: %w", err)
	}

	candidates := make([]string, 0, len(rules))
	for _, r := range rules {
		candidates = append(candidates, r.Domain)
	}
	return e.normalizeSet(candidates), nil
}

// normalizeSet canonicalizes, deduplicates, and drops unusable domains while
// preserving first-seen order.
func (e *Engine) normalizeSet(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, d := range raw {
		domain := Extract(d)
		if domain == "" || !Usable(domain) {
			if d != "" {
				e.logger.Debug("skipping unusable domain", "input", d)
			}
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		out = append(out, domain)
	}
	return out
}
