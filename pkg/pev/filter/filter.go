// Package filter selects industries and tickers by name.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter matches an industry or ticker name.
type Filter interface {
	Match(name string) bool
}

// Parse builds a filter from an expression. Matching ignores case.
// - Comma-separated exact names: "Semiconductors,Banks"
// - Glob: "Software*" (* also crosses the "/" of nested industries)
// - Regex: "/^Soft/"
// - Negation of any of the above: "!Banks"
// - Anything else: substring match
func Parse(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Always(true), nil
	}
	if rest, ok := strings.CutPrefix(expr, "!"); ok {
		f, err := Parse(rest)
		if err != nil {
			return nil, err
		}
		return Not{f}, nil
	}
	if strings.HasPrefix(expr, "/") && strings.HasSuffix(expr, "/") && len(expr) > 2 {
		re, err := regexp.Compile("(?i)" + expr[1:len(expr)-1])
		if err != nil {
			return nil, err
		}
		return Regex{re: re}, nil
	}
	if strings.Contains(expr, ",") {
		set := map[string]struct{}{}
		for _, p := range strings.Split(expr, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			set[strings.ToLower(p)] = struct{}{}
		}
		return ExactSet{set: set}, nil
	}
	if strings.ContainsAny(expr, "*?") {
		return NewGlob(expr), nil
	}
	return SubstrCI{needle: expr}, nil
}

// MustParse is Parse for expressions known to be valid.
func MustParse(expr string) Filter {
	f, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return f
}

// Implementations

type Always bool

func (a Always) Match(string) bool { return bool(a) }

type Not struct{ f Filter }

func (n Not) Match(name string) bool { return !n.f.Match(name) }

type ExactSet struct{ set map[string]struct{} }

func (e ExactSet) Match(name string) bool {
	_, ok := e.set[strings.ToLower(name)]
	return ok
}

// Glob matches shell-style patterns against the whole name.
type Glob struct {
	pattern string
	re      *regexp.Regexp
}

func NewGlob(pattern string) Glob {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return Glob{pattern: pattern, re: regexp.MustCompile(b.String())}
}

func (g Glob) Match(name string) bool { return g.re.MatchString(name) }

type Regex struct{ re *regexp.Regexp }

func (r Regex) Match(name string) bool { return r.re.MatchString(name) }

// String provides a human-readable representation useful for logs/errors.
func (g Glob) String() string { return fmt.Sprintf("glob:%s", g.pattern) }

// SubstrCI matches if name contains needle, case-insensitively.
type SubstrCI struct{ needle string }

func (s SubstrCI) Match(name string) bool {
	if s.needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(s.needle))
}

func (s SubstrCI) String() string { return fmt.Sprintf("substr-ci:%s", s.needle) }
