package identity

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelgate/internal/config"
)

// Rule is one declarative filename pattern. IdentityGroup and ExtensionGroup
// index capture groups of Pattern.
type Rule struct {
	Name           string
	Pattern        *regexp.Regexp
	IdentityGroup  int
	ExtensionGroup int
}

// Identity is the normalized catalog identity extracted from a filename.
type Identity struct {
	Token     string
	Extension string
	Rule      string
}

// CleanedName returns the canonical <TOKEN>.<ext> filename.
func (id Identity) CleanedName() string {
	return id.Token + "." + id.Extension
}

var partSuffix = regexp.MustCompile(`(?i)-pt(\d+)$`)

var upper = cases.Upper(language.Und)

// DefaultRules returns the built-in rules in precedence order. The first
// covers short studio codes with an optional site prefix; the second covers
// longer three-part codes that always follow an @ separator.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:           "standard",
			Pattern:        regexp.MustCompile(`(?i)^.*?@?([A-Za-z0-9]{1,6}-[0-9]{1,5}(?:-pt\d+)?)\.(mp4|mkv)$`),
			IdentityGroup:  1,
			ExtensionGroup: 2,
		},
		{
			Name:           "extended",
			Pattern:        regexp.MustCompile(`(?i)^.*?@([A-Za-z0-9]+-[A-Za-z0-9]+-[0-9]{4,9}(?:-pt\d+)?)\.(mp4|mkv)$`),
			IdentityGroup:  1,
			ExtensionGroup: 2,
		},
	}
}

// CompileRules builds rules from configuration. An empty list yields the
// built-in rules.
func CompileRules(rules []config.IdentityRule) ([]Rule, error) {
	if len(rules) == 0 {
		return DefaultRules(), nil
	}
	compiled := make([]Rule, 0, len(rules))
	for i, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("identity rule %d (%s): %w", i+1, rule.Name, err)
		}
		groups := re.NumSubexp()
		if rule.IdentityGroup < 1 || rule.IdentityGroup > groups || rule.ExtensionGroup < 1 || rule.ExtensionGroup > groups {
			return nil, fmt.Errorf("identity rule %d (%s): capture group out of range", i+1, rule.Name)
		}
		compiled = append(compiled, Rule{
			Name:           rule.Name,
			Pattern:        re,
			IdentityGroup:  rule.IdentityGroup,
			ExtensionGroup: rule.ExtensionGroup,
		})
	}
	return compiled, nil
}

// Resolver maps filenames to identities. It is safe for concurrent use.
type Resolver struct {
	rules []Rule
}

// NewResolver returns a resolver over rules. Nil or empty rules select the
// built-in set.
func NewResolver(rules []Rule) *Resolver {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Resolver{rules: append([]Rule(nil), rules...)}
}

// Rules returns a copy of the active rules in precedence order.
func (r *Resolver) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Resolve extracts the identity from filename. Only the base name is
// examined. The first matching rule decides: later rules are never consulted,
// and a match whose token or extension capture is empty reports false.
func (r *Resolver) Resolve(filename string) (Identity, bool) {
	name := filepath.Base(strings.TrimSpace(filename))
	for _, rule := range r.rules {
		m := rule.Pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		token := normalizeToken(m[rule.IdentityGroup])
		ext := strings.ToLower(m[rule.ExtensionGroup])
		if token == "" || ext == "" {
			return Identity{}, false
		}
		return Identity{Token: token, Extension: ext, Rule: rule.Name}, true
	}
	return Identity{}, false
}

// normalizeToken uppercases the token and restores a lowercase -ptN suffix.
func normalizeToken(raw string) string {
	token := upper.String(strings.TrimSpace(raw))
	if loc := partSuffix.FindStringSubmatchIndex(token); loc != nil {
		token = token[:loc[0]] + "-pt" + token[loc[2]:loc[3]]
	}
	return token
}

// NormalizeTerm turns a user search term into the form stored as a cleaned
// name prefix: the resolved identity without extension when the term looks
// like a catalog name, otherwise the uppercased term.
func (r *Resolver) NormalizeTerm(term string) string {
	term = upper.String(strings.TrimSpace(term))
	if term == "" {
		return ""
	}
	candidate := term
	if ext := strings.ToLower(filepath.Ext(candidate)); ext != ".mp4" && ext != ".mkv" {
		candidate += ".mp4"
	}
	if id, ok := r.Resolve(candidate); ok {
		return id.Token
	}
	return term
}

var compactTerm = regexp.MustCompile(`^([A-Z]+)(\d+)$`)

// CompactFallback rewrites a hyphenless term such as ABC123 into ABC-123. It
// reports false when the term does not have that shape.
func CompactFallback(term string) (string, bool) {
	m := compactTerm.FindStringSubmatch(upper.String(strings.TrimSpace(term)))
	if m == nil {
		return "", false
	}
	return m[1] + "-" + m[2], true
}
