package disposable

import "strings"

// IsDisposable reports whether domain is a known disposable mail domain.
// Subdomains of a listed domain count as disposable too.
func IsDisposable(domain string) bool {
	domain = strings.TrimSuffix(strings.ToLower(domain), ".")
	for domain != "" {
		if _, ok := disposableSet[domain]; ok {
			return true
		}
		dot := strings.IndexByte(domain, '.')
		if dot < 0 {
			return false
		}
		domain = domain[dot+1:]
	}
	return false
}

// Len returns the number of listed domains.
func Len() int {
	return len(disposableSet)
}
