package rbac

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/udea/innosistemas/pkg/auth"
)

// AccessRule restricts paths matching Pattern to Roles. An empty Roles list marks the path public.
// Pattern is Ant style: "**" matches anything, "*" one path segment, "?" one character.
type AccessRule struct {
	Pattern string      `yaml:"pattern" json:"pattern"`
	Roles   []auth.Role `yaml:"roles" json:"roles"`
}

type compiledRule struct {
	AccessRule
	re *regexp.Regexp
}

// AccessRules is an immutable, ordered snapshot of route rules. The first matching rule wins.
type AccessRules struct {
	rules []compiledRule
}

// DefaultAccessRules returns the built-in route rules
func DefaultAccessRules() *AccessRules {
	rules, err := NewAccessRules([]AccessRule{
		{Pattern: "/api/v1/admin/**", Roles: []auth.Role{auth.RoleAdmin}},
		{Pattern: "/metrics", Roles: []auth.Role{auth.RoleAdmin}},
		{Pattern: "/api/v1/projects/**", Roles: []auth.Role{auth.RoleStudent, auth.RoleAdmin}},
		{Pattern: "/api/v1/teams/**", Roles: []auth.Role{auth.RoleStudent, auth.RoleAdmin}},
		{Pattern: "/auth/**"},
		{Pattern: "/graphql"},
	})
	if err != nil {
		panic(err)
	}
	return rules
}

// NewAccessRules validates and compiles rules into a snapshot
func NewAccessRules(rules []AccessRule) (*AccessRules, error) {
	out := &AccessRules{rules: make([]compiledRule, 0, len(rules))}
	seen := make(map[string]bool, len(rules))

	for i, r := range rules {
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("rule %d: pattern %q must start with /", i, r.Pattern)
		}
		if seen[r.Pattern] {
			return nil, fmt.Errorf("rule %d: duplicate pattern %q", i, r.Pattern)
		}
		seen[r.Pattern] = true

		roles := make([]auth.Role, 0, len(r.Roles))
		for _, role := range r.Roles {
			parsed, err := auth.ParseRole(string(role))
			if err != nil {
				return nil, fmt.Errorf("rule %d (%s): %w", i, r.Pattern, err)
			}
			roles = append(roles, parsed)
		}

		re, err := regexp.Compile(antToRegexp(r.Pattern))
		if err != nil {
			return nil, fmt.Errorf("rule %d: compiling %q: %w", i, r.Pattern, err)
		}
		out.rules = append(out.rules, compiledRule{
			AccessRule: AccessRule{Pattern: r.Pattern, Roles: roles},
			re:         re,
		})
	}
	return out, nil
}

func antToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; {
		case c == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			b.WriteString(".*")
			i++
		case c == '*':
			b.WriteString("[^/]*")
		case c == '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// Match returns the first rule matching path
func (a *AccessRules) Match(path string) (AccessRule, bool) {
	for _, r := range a.rules {
		if r.re.MatchString(path) {
			return r.AccessRule, true
		}
	}
	return AccessRule{}, false
}

// Rules returns a copy of the rules in evaluation order
func (a *AccessRules) Rules() []AccessRule {
	out := make([]AccessRule, len(a.rules))
	for i, r := range a.rules {
		roles := make([]auth.Role, len(r.Roles))
		copy(roles, r.Roles)
		out[i] = AccessRule{Pattern: r.Pattern, Roles: roles}
	}
	return out
}

type rulesFile struct {
	Rules []AccessRule `yaml:"rules"`
}

// ParseAccessRules reads a YAML document of the form
//
//	rules:
//	  - pattern: /api/v1/admin/**
//	    roles: [ADMIN]
func ParseAccessRules(data []byte) (*AccessRules, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing access rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("access rules file has no rules")
	}
	return NewAccessRules(f.Rules)
}

// LoadAccessRulesFile reads and parses a YAML rules file
func LoadAccessRulesFile(path string) (*AccessRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading access rules: %w", err)
	}
	return ParseAccessRules(data)
}

// RuleSet holds the current AccessRules snapshot. Readers never block; Replace swaps the whole snapshot.
type RuleSet struct {
	current atomic.Pointer[AccessRules]
}

// NewRuleSet starts with initial
func NewRuleSet(initial *AccessRules) *RuleSet {
	rs := &RuleSet{}
	rs.current.Store(initial)
	return rs
}

// Current returns the active snapshot
func (rs *RuleSet) Current() *AccessRules {
	return rs.current.Load()
}

// Replace installs next and returns the previous snapshot
func (rs *RuleSet) Replace(next *AccessRules) *AccessRules {
	return rs.current.Swap(next)
}
