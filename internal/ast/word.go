package ast

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// IsBare reports whether s can appear as a shell word without quoting and
// still denote exactly s. The accepted alphabet is deliberately small: no
// globs, expansions, tildes, escapes or '='.
func IsBare(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("_-./,:+@%", r):
		default:
			return false
		}
	}
	return true
}

// Word builds a shell word denoting exactly s. Bare strings stay literal;
// everything else is single-quoted, with embedded single quotes spliced in
// as \'.
func Word(s string) *syntax.Word {
	if IsBare(s) {
		return &syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: s}}}
	}

	chunks := strings.Split(s, "'")
	parts := make([]syntax.WordPart, 0, 2*len(chunks))
	for i, chunk := range chunks {
		if i > 0 {
			parts = append(parts, &syntax.Lit{Value: `\'`})
		}
		if chunk != "" || len(chunks) == 1 {
			parts = append(parts, &syntax.SglQuoted{Value: chunk})
		}
	}
	return &syntax.Word{Parts: parts}
}

// WordText is the inverse of Word for words made of literals and single
// quoted parts. ok is false for anything that needs expansion.
func WordText(w *syntax.Word) (text string, ok bool) {
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			// the parser keeps adjacent escaped quotes in one literal
			for v := p.Value; v != ""; {
				if strings.HasPrefix(v, `\'`) {
					sb.WriteByte('\'')
					v = v[2:]
					continue
				}
				i := strings.Index(v, `\'`)
				if i < 0 {
					i = len(v)
				}
				if !IsBare(v[:i]) {
					return "", false
				}
				sb.WriteString(v[:i])
				v = v[i:]
			}
		case *syntax.SglQuoted:
			if p.Dollar {
				return "", false
			}
			sb.WriteString(p.Value)
		default:
			return "", false
		}
	}
	return sb.String(), true
}
