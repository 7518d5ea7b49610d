// Package mxprobe tells whether a remote mail system would accept mail for
// an address, without delivering a message.
//
// It resolves the domain's mail exchangers, speaks SMTP to them up to the
// RCPT TO step and folds the answers into a verdict: valid, invalid or risky,
// with a confidence score.
//
// Basic usage:
//
//	v := mxprobe.New().WithSMTP(mxprobe.SMTPOptions{
//	    HeloDomain: "myapp.com",
//	    MailFrom:   "verify@myapp.com",
//	})
//	verdict, err := v.VerifyAddress(ctx, "user@example.com")
//
// Batch usage shares one MX lookup per domain across the whole call:
//
//	verdicts, err := v.VerifyMany(ctx, emails, mxprobe.ConcurrencyOptions{Workers: 10})
package mxprobe

import "github.com/optimode/mxprobe/types"

// Verdict is a re-export from the types package so that consumers
// don't need to import the types package directly.
type Verdict = types.Verdict

// Status is a re-export.
type Status = types.Status

// Status constants re-exported.
const (
	StatusValid   = types.StatusValid
	StatusInvalid = types.StatusInvalid
	StatusRisky   = types.StatusRisky
)

// Confidence scores attached to verdicts.
const (
	ConfidenceAccepted      = 95
	ConfidenceGreylisted    = 80
	ConfidenceCatchAll      = 70
	ConfidenceIndeterminate = 50
	ConfidenceUnresolved    = 30
	ConfidenceUnavailable   = 30
	ConfidenceDisposable    = 20
	ConfidenceInvalid       = 0
)
