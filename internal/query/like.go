package query

import (
	"regexp"
	"strings"

	"github.com/crmock/crmock/internal/record"
)

// The wildcard pattern dialect:
//
//	%      any run of characters (including empty)
//	_      exactly one character
//	[a-f]  any character in the inclusive range
//	[abc]  any character in the set
//	[^ab]  any character not in the set
//
// Patterns compile to anchored, case-insensitive regular expressions over
// NFC-normalized text.

// compileWildcard translates a wildcard pattern into a regexp.
func compileWildcard(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?is)^")

	runes := []rune(record.Fold(pattern))
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		case '[':
			// Copy the bracket expression through; the range/set/negation
			// syntax is the same in regexp. An unterminated bracket is
			// treated literally.
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == ']' {
					end = j
					break
				}
			}
			if end == -1 {
				b.WriteString(regexp.QuoteMeta(string(r)))
				continue
			}
			b.WriteString(string(runes[i : end+1]))
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	b.WriteString("$")
	return regexp.Compile(b.String())
}

// matchWildcard reports whether s matches the wildcard pattern.
func matchWildcard(pattern, s string) (bool, error) {
	re, err := compileWildcard(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(record.Fold(s)), nil
}
