package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// ErrEndpointUnavailable marks a probe that could not be completed against an
// endpoint at all. It says nothing about the address under test.
var ErrEndpointUnavailable = errors.New("probe: endpoint unavailable")

// Cause is the reason an endpoint was unavailable.
type Cause int

const (
	CauseNetwork Cause = iota
	CauseTimeout
	CauseCanceled
	CauseRefused
	CauseReset
	CauseUnreachable
	CauseNotFound
	CauseCircuitOpen
)

func (c Cause) String() string {
	switch c {
	case CauseTimeout:
		return "timeout"
	case CauseCanceled:
		return "canceled"
	case CauseRefused:
		return "connection refused"
	case CauseReset:
		return "connection reset"
	case CauseUnreachable:
		return "unreachable"
	case CauseNotFound:
		return "not found"
	case CauseCircuitOpen:
		return "circuit open"
	default:
		return "network error"
	}
}

// UnavailableError is returned by Probe when the endpoint could not be used.
// errors.Is(err, ErrEndpointUnavailable) holds for every UnavailableError.
type UnavailableError struct {
	Endpoint string
	Cause    Cause
	Err      error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("probe: %s unavailable: %s", e.Endpoint, e.Cause)
	}
	return fmt.Sprintf("probe: %s unavailable: %s: %v", e.Endpoint, e.Cause, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrEndpointUnavailable}
	}
	return []error{ErrEndpointUnavailable, e.Err}
}

// Unavailable builds an UnavailableError. It is exported for wrappers such
// as circuit breakers that refuse an endpoint without dialing it.
func Unavailable(endpoint string, cause Cause, err error) *UnavailableError {
	return &UnavailableError{Endpoint: endpoint, Cause: cause, Err: err}
}

// networkCause reports whether err is a classic network failure and which.
// Errors outside that set (EOF, protocol garbage) return ok=false.
func networkCause(err error) (cause Cause, ok bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return CauseTimeout, true
	case errors.Is(err, context.Canceled):
		return CauseCanceled, true
	case errors.Is(err, syscall.ECONNREFUSED):
		return CauseRefused, true
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNABORTED):
		return CauseReset, true
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return CauseUnreachable, true
	case errors.Is(err, syscall.ETIMEDOUT):
		return CauseTimeout, true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return CauseNotFound, true
		}
		return CauseNetwork, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CauseTimeout, true
	}
	return CauseNetwork, false
}

// contextCause maps a finished context onto a Cause.
func contextCause(ctx context.Context) Cause {
	if errors.Is(ctx.Err(), context.Canceled) {
		return CauseCanceled
	}
	return CauseTimeout
}
