package mxprobe

import "errors"

var (
	// ErrSMTPNotConfigured is returned when a Verify method is called
	// before WithSMTP.
	ErrSMTPNotConfigured = errors.New("mxprobe: WithSMTP must be configured before verifying")

	// ErrInvalidSMTPOptions is returned when WithSMTP is called
	// but HeloDomain or MailFrom is missing, or the options are otherwise unusable.
	ErrInvalidSMTPOptions = errors.New("mxprobe: SMTPOptions requires HeloDomain and MailFrom")

	// ErrSMTPUnavailable is returned by VerifyAddress when every probe
	// attempt for the address found its endpoint unavailable. It usually
	// means the local network path to port 25 is blocked. The accompanying
	// verdict is risky with low confidence.
	ErrSMTPUnavailable = errors.New("mxprobe: no mail exchanger could be reached")
)
