package shell

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"mvdan.cc/sh/v3/syntax"
)

// Dialect selects the grammar variant used to parse and print a script.
type Dialect int

const (
	DialectPOSIX Dialect = iota
	DialectBash
	DialectMksh
)

var dialectNames = map[string]Dialect{
	"posix": DialectPOSIX,
	"sh":    DialectPOSIX,
	"bash":  DialectBash,
	"mksh":  DialectMksh,
}

func (d Dialect) String() string {
	switch d {
	case DialectBash:
		return "bash"
	case DialectMksh:
		return "mksh"
	default:
		return "posix"
	}
}

// Variant maps the dialect onto the parser's language variant.
func (d Dialect) Variant() syntax.LangVariant {
	switch d {
	case DialectBash:
		return syntax.LangBash
	case DialectMksh:
		return syntax.LangMirBSDKorn
	default:
		return syntax.LangPOSIX
	}
}

// Dialects lists the accepted dialect names, sorted.
func Dialects() []string {
	names := make([]string, 0, len(dialectNames))
	for name := range dialectNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseDialect resolves a dialect name, case-insensitively.
func ParseDialect(name string) (Dialect, error) {
	if d, ok := dialectNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return d, nil
	}
	if suggestion := ClosestMatch(name, Dialects()); suggestion != "" {
		return DialectPOSIX, fmt.Errorf("unknown dialect %q (did you mean %q?)", name, suggestion)
	}
	return DialectPOSIX, fmt.Errorf("unknown dialect %q (valid: %s)", name, strings.Join(Dialects(), ", "))
}

// ClosestMatch returns the candidate closest to target using fuzzy matching,
// or "" when nothing is close.
func ClosestMatch(target string, candidates []string) string {
	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) == 0 {
		// "bashh" is not a subsequence of any name; try the other direction
		for _, c := range candidates {
			if fuzzy.MatchFold(c, target) {
				return c
			}
		}
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}
