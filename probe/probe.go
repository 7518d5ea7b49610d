// Package probe asks a single mail exchanger endpoint whether it would accept
// mail for an address, without sending any message.
//
// The handshake is greeting, EHLO (HELO on fallback), MAIL FROM and RCPT TO,
// followed by a best-effort QUIT. The RCPT TO reply decides the outcome.
// The whole exchange runs under one timer started before connecting.
package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/optimode/mxprobe/internal/reply"
	"github.com/optimode/mxprobe/resolve"
)

// quitGrace bounds the QUIT write after a decided probe.
const quitGrace = time.Second

// Outcome is the classification of a completed probe.
type Outcome int

const (
	Accepted Outcome = iota + 1
	Rejected
	Indeterminate
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Indeterminate:
		return "indeterminate"
	default:
		return "unknown"
	}
}

// Result is a probe verdict about one address at one endpoint.
type Result struct {
	Outcome Outcome
	// Code is the reply code seen at the deciding step, 0 if none was read.
	Code       int
	Reason     string
	Greylisted bool
}

// Config is the probe configuration.
type Config struct {
	// HeloDomain is the name sent with EHLO/HELO.
	HeloDomain string
	// MailFrom is the synthetic return path sent with MAIL FROM.
	MailFrom string
	// Port is the SMTP port. Default: 25
	Port string
	// Timeout bounds the whole probe, connect included. Default: 10s
	Timeout time.Duration
	// Dial opens the connection. Default: DirectDialer()
	Dial   DialFunc
	Logger *zap.Logger
}

// Prober runs probes. It is safe for concurrent use.
type Prober struct {
	cfg Config
}

// New creates a Prober, filling in defaults for unset fields.
func New(cfg Config) *Prober {
	if cfg.Port == "" {
		cfg.Port = "25"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Dial == nil {
		cfg.Dial = DirectDialer()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Prober{cfg: cfg}
}

// Timeout returns the effective per-probe timeout.
func (p *Prober) Timeout() time.Duration {
	return p.cfg.Timeout
}

// Probe runs the handshake for email against ep. It returns a Result, or an
// *UnavailableError when the endpoint could not be used, never both. The
// connection is always released before Probe returns.
func (p *Prober) Probe(ctx context.Context, email string, ep resolve.Endpoint) (Result, error) {
	if strings.ContainsAny(email, "\r\n<> ") {
		return Result{Outcome: Indeterminate, Reason: "address contains characters not allowed in RCPT TO"}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(ep.Addr.String(), p.cfg.Port)
	log := p.cfg.Logger.With(zap.Stringer("endpoint", ep), zap.String("email", email))

	conn, err := p.cfg.Dial(ctx, "tcp", addr)
	if err != nil {
		cause, _ := networkCause(err)
		if ctx.Err() != nil {
			cause = contextCause(ctx)
		}
		log.Debug("connect failed", zap.Stringer("cause", cause), zap.Error(err))
		return Result{}, Unavailable(ep.String(), cause, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblocks reads and writes when the caller cancels without a deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	s := &session{
		ctx:   ctx,
		cfg:   p.cfg,
		email: email,
		ep:    ep,
		conn:  conn,
		r:     reply.NewReader(conn),
		w:     bufio.NewWriter(conn),
		log:   log,
	}
	res, err := s.run()
	s.quit()

	if err != nil {
		log.Debug("probe unavailable", zap.Error(err))
		return Result{}, err
	}
	log.Debug("probe finished",
		zap.Stringer("outcome", res.Outcome),
		zap.Int("code", res.Code),
		zap.Bool("greylisted", res.Greylisted))
	return res, nil
}

type session struct {
	ctx   context.Context
	cfg   Config
	email string
	ep    resolve.Endpoint
	conn  net.Conn
	r     *reply.Reader
	w     *bufio.Writer
	log   *zap.Logger
}

// run drives the state machine until a handler produces a result or the
// transport fails.
func (s *session) run() (Result, error) {
	st := stateAwaitGreeting
	for {
		rep, err := s.r.Read()
		if err != nil {
			return s.failed(st, err)
		}
		s.log.Debug("reply", zap.Stringer("state", st), zap.Int("code", rep.Code))

		h, ok := handlers[st]
		if !ok {
			return Result{Outcome: Indeterminate, Code: rep.Code, Reason: fmt.Sprintf("no handler for %s", st)}, nil
		}
		t := h(s, rep)
		if t.result != nil {
			return *t.result, nil
		}
		if err := s.send(t.send); err != nil {
			return s.failed(t.next, err)
		}
		st = t.next
	}
}

func (s *session) send(cmd string) error {
	if _, err := s.w.WriteString(cmd + "\r\n"); err != nil {
		return err
	}
	return s.w.Flush()
}

// failed classifies a transport or grammar error seen while in st. Timer
// expiry and classic network failures make the endpoint unavailable;
// anything else is a weak signal about this endpoint and is indeterminate.
func (s *session) failed(st state, err error) (Result, error) {
	if s.ctx.Err() != nil {
		return Result{}, Unavailable(s.ep.String(), contextCause(s.ctx), err)
	}
	if errors.Is(err, reply.ErrMalformed) {
		return Result{Outcome: Indeterminate, Reason: fmt.Sprintf("malformed reply during %s: %v", st, err)}, nil
	}
	if cause, ok := networkCause(err); ok {
		return Result{}, Unavailable(s.ep.String(), cause, err)
	}
	return Result{Outcome: Indeterminate, Reason: fmt.Sprintf("connection lost during %s: %v", st, err)}, nil
}

// quit sends QUIT without waiting for the reply. Errors are ignored, and
// nothing is sent once the probe timer has fired.
func (s *session) quit() {
	if s.ctx.Err() != nil {
		return
	}
	deadline := time.Now().Add(quitGrace)
	if d, ok := s.ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetDeadline(deadline)
	_ = s.send("QUIT")
}
