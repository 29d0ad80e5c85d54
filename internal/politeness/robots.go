package politeness

import (
	"bytes"
	"regexp"
	"strings"
)

const maxRobotsLineBytes = 64 * 1024

// Matcher is a compiled set of disallow rules for one domain. A nil Matcher,
// or one built from zero rules, matches nothing. Matchers are immutable.
type Matcher struct {
	re    *regexp.Regexp
	rules []string
}

// matchNothing is shared by every domain without usable rules.
var matchNothing = &Matcher{}

// Match reports whether path is disallowed.
func (m *Matcher) Match(path string) bool {
	if m == nil || m.re == nil {
		return false
	}
	return m.re.MatchString(path)
}

// Rules returns the raw disallow patterns that were compiled.
func (m *Matcher) Rules() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.rules))
	copy(out, m.rules)
	return out
}

// Parse reads robots.txt content and compiles the disallow rules of the
// wildcard user-agent. Lines that cannot be interpreted, including lines
// longer than maxRobotsLineBytes, are skipped.
func Parse(body []byte) *Matcher {
	var (
		wildcard bool
		rules    []string
	)
	for rest := body; len(rest) > 0; {
		var line []byte
		line, rest, _ = bytes.Cut(rest, []byte{'\n'})
		if len(line) > maxRobotsLineBytes {
			continue
		}
		key, value, ok := splitDirective(strings.TrimSuffix(string(line), "\r"))
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "user-agent":
			wildcard = value == "*"
		case "disallow":
			if wildcard && value != "" {
				rules = append(rules, value)
			}
		}
	}
	return Compile(rules)
}

// Compile builds a Matcher from raw disallow patterns.
func Compile(patterns []string) *Matcher {
	exprs := make([]string, 0, len(patterns))
	kept := make([]string, 0, len(patterns))
	for _, p := range patterns {
		expr := ruleExpr(p)
		if _, err := regexp.Compile(expr); err != nil {
			continue
		}
		exprs = append(exprs, expr)
		kept = append(kept, p)
	}
	if len(exprs) == 0 {
		return matchNothing
	}
	re, err := regexp.Compile("^(?:" + strings.Join(exprs, "|") + ")")
	if err != nil {
		return matchNothing
	}
	return &Matcher{re: re, rules: kept}
}

// ruleExpr converts one disallow pattern into a regular expression: "*"
// matches any sequence, everything else is literal, and anything may follow.
func ruleExpr(pattern string) string {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return strings.Join(parts, ".*") + ".*"
}

func splitDirective(line string) (string, string, bool) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	key, rest, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return key, "", true
	}
	return key, fields[0], true
}
