// Package shortid reduces knowledge-graph identifiers to the short catalog codes
// (CWE-89, CAPEC-66, T1566.001, AML.T0020, D3-PH) used as node identity.
package shortid

import (
	"regexp"
	"strings"
)

// codePatterns are tried in order. ATLAS codes come before ATT&CK codes because
// "AML.T0020" also contains an ATT&CK-shaped "T0020".
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:CWE|CAPEC)-\d+`),
	regexp.MustCompile(`\bAML\.[A-Z]+\d+(?:\.\d+)*`),
	regexp.MustCompile(`\b(?:TA\d{4}|T\d{4}(?:\.\d{3})?|M\d{4})\b`),
	regexp.MustCompile(`\bD3-[A-Z]+\b`),
}

// containerPrefixes are generic namespace words dropped from the front of a
// trailing segment, e.g. "definitions:89" in a prefixed name.
var containerPrefixes = []string{"definitions:", "definitions."}

// Shorten returns the catalog code embedded in raw, or the trailing path segment
// when no code is recognisable. Input with nothing but whitespace is returned
// unchanged, so the result is empty only for empty input.
func Shorten(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}
	raw = strings.TrimSpace(raw)

	for _, re := range codePatterns {
		if code := re.FindString(raw); code != "" {
			return code
		}
	}

	if seg := trailingSegment(raw); seg != "" {
		return seg
	}
	return raw
}

func trailingSegment(raw string) string {
	s := strings.TrimRight(raw, "/#")
	if i := strings.LastIndexAny(s, "/#"); i >= 0 {
		s = s[i+1:]
	}
	for _, prefix := range containerPrefixes {
		if strings.HasPrefix(s, prefix) && len(s) > len(prefix) {
			s = s[len(prefix):]
			break
		}
	}
	return s
}
