package check

import (
	"strings"

	"github.com/optimode/mxprobe/internal/disposable"
	"github.com/optimode/mxprobe/internal/levenshtein"
	"github.com/optimode/mxprobe/internal/parse"
)

// DomainConfig is the domain checker configuration.
type DomainConfig struct {
	CheckDisposable bool
	CheckRole       bool
	CheckTypos      bool
	TypoThreshold   int
}

// DomainReport is what the domain checker found. Neither flag makes an
// address invalid on its own.
type DomainReport struct {
	Disposable bool
	Role       bool
	// Suggestion is a well-known provider domain the address probably
	// meant, e.g. gmail.com for gmial.com.
	Suggestion string
}

// DomainChecker flags disposable domains, role account local parts and
// likely typos of major provider domains.
type DomainChecker struct {
	cfg            DomainConfig
	roles          map[string]struct{}
	knownProviders []string
}

// defaultKnownProviders are the major mailbox providers used for typo
// suggestions.
var defaultKnownProviders = []string{
	"gmail.com", "googlemail.com",
	"yahoo.com", "yahoo.co.uk", "yahoo.fr", "yahoo.de",
	"outlook.com", "hotmail.com", "hotmail.co.uk", "live.com",
	"icloud.com", "me.com", "mac.com",
	"protonmail.com", "proton.me",
	"aol.com",
	"zoho.com",
	"yandex.com", "yandex.ru",
	"gmx.com", "gmx.net", "gmx.de",
	"fastmail.com",
}

// defaultRoles are local parts that usually reach a team or a robot rather
// than a person.
var defaultRoles = []string{
	"admin", "administrator", "info", "contact", "support", "help",
	"sales", "marketing", "noreply", "no-reply", "postmaster",
	"webmaster", "hostmaster", "abuse", "security", "privacy",
}

func NewDomainChecker(cfg DomainConfig) *DomainChecker {
	roles := make(map[string]struct{}, len(defaultRoles))
	for _, r := range defaultRoles {
		roles[r] = struct{}{}
	}
	if cfg.TypoThreshold <= 0 {
		cfg.TypoThreshold = 2
	}
	return &DomainChecker{cfg: cfg, roles: roles, knownProviders: defaultKnownProviders}
}

func (c *DomainChecker) Check(email parse.Email) DomainReport {
	var rep DomainReport
	if !email.Valid {
		return rep
	}

	// The list is ASCII, so the Punycode form is compared.
	if c.cfg.CheckDisposable {
		rep.Disposable = disposable.IsDisposable(email.Domain)
	}
	if c.cfg.CheckRole {
		_, rep.Role = c.roles[strings.ToLower(email.Local)]
	}
	// The Unicode form matches typed input better.
	if c.cfg.CheckTypos && !rep.Disposable {
		rep.Suggestion = levenshtein.Closest(strings.ToLower(email.DomainUnicode), c.knownProviders, c.cfg.TypoThreshold)
	}
	return rep
}
