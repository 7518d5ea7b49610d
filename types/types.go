// Package types contains the shared types for mxprobe.
// This package does not import anything from other mxprobe packages
// to avoid circular imports.
package types

// Status is the externally visible classification of an address.
type Status = string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	StatusRisky   Status = "risky"
)

// Source names the stage that produced a verdict.
type Source = string

const (
	SourceSyntax Source = "syntax"
	SourceDNS    Source = "dns"
	SourceDomain Source = "domain"
	SourceSMTP   Source = "smtp"
)

// Verdict is the outcome of verifying one address.
// Exactly one Verdict is produced per input address per verification call.
type Verdict struct {
	Email      string `json:"email"`
	Status     Status `json:"status"`
	Confidence int    `json:"confidence"`
	Message    string `json:"message,omitempty"`
	Source     Source `json:"source,omitempty"`
	MXHost     string `json:"mxHost,omitempty"`
	SMTPCode   int    `json:"smtpCode,omitempty"`
	Greylisted bool   `json:"greylisted,omitempty"`
	CatchAll   bool   `json:"catchAll,omitempty"`
	Disposable bool   `json:"disposable,omitempty"`
	Role       bool   `json:"role,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}
