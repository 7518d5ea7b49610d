// Package parse splits and normalises email addresses for the probe pipeline.
package parse

import (
	"net/mail"
	"strings"

	"golang.org/x/net/idna"
)

// Email is a parsed address. Domain is always the ASCII form that DNS and
// SMTP see; DomainUnicode is kept for reporting.
type Email struct {
	Raw           string
	Local         string
	Domain        string
	DomainUnicode string
	Valid         bool
}

// Address returns the canonical local@domain form used in RCPT TO.
func (e Email) Address() string {
	if !e.Valid {
		return e.Raw
	}
	return e.Local + "@" + e.Domain
}

// NewEmail parses raw. Raw is always populated, even when Valid is false.
// Unicode local parts (RFC 6531) and IDNA2008 domains are accepted.
func NewEmail(raw string) Email {
	raw = strings.TrimSpace(raw)

	local, domain, ok := split(raw)
	if !ok {
		return Email{Raw: raw}
	}

	ascii, unicode, ok := convertDomain(strings.ToLower(domain))
	if !ok {
		return Email{Raw: raw}
	}

	return Email{
		Raw:           raw,
		Local:         local,
		Domain:        ascii,
		DomainUnicode: unicode,
		Valid:         true,
	}
}

// Domain returns the ASCII domain of raw, or "" when raw has none.
func Domain(raw string) string {
	e := NewEmail(raw)
	if !e.Valid {
		return ""
	}
	return e.Domain
}

func split(raw string) (local, domain string, ok bool) {
	if addr, err := mail.ParseAddress(raw); err == nil {
		raw = addr.Address
	} else if addr, err := mail.ParseAddress("<" + raw + ">"); err == nil {
		raw = addr.Address
	}
	// net/mail rejects SMTPUTF8 local parts; the last '@' still splits them.
	at := strings.LastIndex(raw, "@")
	if at < 1 || at >= len(raw)-1 {
		return "", "", false
	}
	return raw[:at], raw[at+1:], true
}

func convertDomain(domain string) (ascii, unicode string, ok bool) {
	for _, r := range domain {
		if r > 127 {
			a, err := idna.Lookup.ToASCII(domain)
			if err != nil {
				return "", "", false
			}
			return a, domain, true
		}
	}
	u, err := idna.Display.ToUnicode(domain)
	if err != nil {
		u = domain
	}
	return domain, u, true
}
