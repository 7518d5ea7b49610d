// Package candidate generates plausible mailbox addresses for a person at a
// domain. It does no I/O.
package candidate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxPowerSetLetters caps the dot-insertion power set at 2^15 variants.
const maxPowerSetLetters = 16

var separators = []string{".", "-", "_", ""}

// Generate returns the unique candidate addresses for first (and optionally
// last) at domain, lower-cased, in a stable order. It returns nil when first
// or domain is blank.
func Generate(first, last, domain string) []string {
	f := cleanName(first)
	l := cleanName(last)
	d := cleanDomain(domain)
	if f == "" || d == "" {
		return nil
	}

	s := newSet(d)
	fi := firstRune(f)
	s.add(f)
	s.add(fi)

	for _, sep := range separators[:3] {
		s.add(joinRunes(f, sep))
	}

	if l == "" {
		if utf8.RuneCountInString(f) <= maxPowerSetLetters {
			for _, v := range dotVariants(f) {
				s.add(v)
			}
		}
		fl := lastRune(f)
		for _, c := range []string{fi, fl} {
			s.add(c + "." + f)
			s.add(c + "-" + f)
			s.add(f + "." + c)
			s.add(c + f)
		}
		s.add(fl)
		return s.list
	}

	li := firstRune(l)
	s.add(l)
	for _, sep := range separators {
		s.add(f + sep + l)
		s.add(l + sep + f)
		s.add(fi + sep + l)
		s.add(f + sep + li)
		s.add(l + sep + fi)
		s.add(fi + sep + li)
	}
	return s.list
}

// SplitFullName splits "nandhakumar s" into ("nandhakumar", "s"). The first
// whitespace-separated word is the first name; the rest is the last name.
func SplitFullName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// dotVariants returns every way of inserting dots between the letters of
// name, including none.
func dotVariants(name string) []string {
	runes := []rune(name)
	if len(runes) < 2 {
		return []string{name}
	}
	gaps := len(runes) - 1
	out := make([]string, 0, 1<<gaps)
	var sb strings.Builder
	for mask := 0; mask < 1<<gaps; mask++ {
		sb.Reset()
		for i, r := range runes {
			sb.WriteRune(r)
			if i < gaps && mask&(1<<i) != 0 {
				sb.WriteByte('.')
			}
		}
		out = append(out, sb.String())
	}
	return out
}

type set struct {
	domain string
	seen   map[string]struct{}
	list   []string
}

func newSet(domain string) *set {
	return &set{domain: domain, seen: make(map[string]struct{})}
}

// add records local@domain unless local is degenerate or already present.
func (s *set) add(local string) {
	if !wellFormed(local) {
		return
	}
	addr := local + "@" + s.domain
	if _, ok := s.seen[addr]; ok {
		return
	}
	s.seen[addr] = struct{}{}
	s.list = append(s.list, addr)
}

func isSeparator(r rune) bool {
	return r == '.' || r == '-' || r == '_'
}

// wellFormed rejects empty local parts and those with boundary or
// consecutive separators.
func wellFormed(local string) bool {
	if local == "" {
		return false
	}
	prevSep := true
	for _, r := range local {
		sep := isSeparator(r)
		if sep && prevSep {
			return false
		}
		prevSep = sep
	}
	return !prevSep
}

// cleanName lower-cases name and keeps only letters, digits and separators.
func cleanName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || isSeparator(r) {
			sb.WriteRune(r)
		}
	}
	return strings.Trim(sb.String(), ".-_")
}

func cleanDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "@")
	return strings.TrimSuffix(d, ".")
}

func firstRune(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	return string(r)
}

func lastRune(s string) string {
	r, _ := utf8.DecodeLastRuneInString(s)
	return string(r)
}

// joinRunes puts sep between letters of s. Names that already contain
// separators are returned unchanged.
func joinRunes(s, sep string) string {
	if strings.ContainsFunc(s, isSeparator) {
		return s
	}
	runes := []rune(s)
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = string(r)
	}
	return strings.Join(parts, sep)
}
