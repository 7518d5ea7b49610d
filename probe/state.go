package probe

import (
	"fmt"

	"github.com/optimode/mxprobe/internal/reply"
)

// state is a position in the probe handshake. Every state except
// stateConnecting waits for exactly one server reply.
type state int

const (
	stateConnecting state = iota
	stateAwaitGreeting
	stateAwaitEhlo
	stateAwaitHelo
	stateAwaitMailFrom
	stateAwaitRcpt
)

func (s state) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateAwaitGreeting:
		return "greeting"
	case stateAwaitEhlo:
		return "ehlo"
	case stateAwaitHelo:
		return "helo"
	case stateAwaitMailFrom:
		return "mail-from"
	case stateAwaitRcpt:
		return "rcpt-to"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transition is what a handler decided after one reply: either a terminal
// result, or a command to send and the state that awaits its reply.
type transition struct {
	result *Result
	send   string
	next   state
}

type handler func(s *session, rep reply.Reply) transition

var handlers = map[state]handler{
	stateAwaitGreeting: (*session).onGreeting,
	stateAwaitEhlo:     (*session).onEhlo,
	stateAwaitHelo:     (*session).onHelo,
	stateAwaitMailFrom: (*session).onMailFrom,
	stateAwaitRcpt:     (*session).onRcpt,
}

func advance(cmd string, next state) transition {
	return transition{send: cmd, next: next}
}

func finish(r Result) transition {
	return transition{result: &r}
}

func stalled(st state, rep reply.Reply) transition {
	return finish(Result{
		Outcome: Indeterminate,
		Code:    rep.Code,
		Reason:  fmt.Sprintf("%s rejected: %s", st, rep.Text()),
	})
}

func (s *session) onGreeting(rep reply.Reply) transition {
	if rep.Class() != 2 {
		return stalled(stateAwaitGreeting, rep)
	}
	return advance("EHLO "+s.cfg.HeloDomain, stateAwaitEhlo)
}

func (s *session) onEhlo(rep reply.Reply) transition {
	switch {
	case rep.Class() == 2:
		return advance(s.mailFrom(), stateAwaitMailFrom)
	case rep.Code == 500 || rep.Code == 502:
		// Pre-ESMTP server; RFC 5321 4.1.4 allows falling back to HELO.
		return advance("HELO "+s.cfg.HeloDomain, stateAwaitHelo)
	default:
		return stalled(stateAwaitEhlo, rep)
	}
}

func (s *session) onHelo(rep reply.Reply) transition {
	if rep.Class() != 2 {
		return stalled(stateAwaitHelo, rep)
	}
	return advance(s.mailFrom(), stateAwaitMailFrom)
}

func (s *session) onMailFrom(rep reply.Reply) transition {
	if rep.Class() != 2 {
		return stalled(stateAwaitMailFrom, rep)
	}
	return advance("RCPT TO:<"+s.email+">", stateAwaitRcpt)
}

func (s *session) onRcpt(rep reply.Reply) transition {
	r := ClassifyRecipient(rep.Code)
	r.Reason = rep.Text()
	return finish(r)
}

func (s *session) mailFrom() string {
	return "MAIL FROM:<" + s.cfg.MailFrom + ">"
}

// ClassifyRecipient maps the final RCPT TO reply code onto an outcome.
// 450 is read as greylisting, which is taken as evidence the mailbox exists.
func ClassifyRecipient(code int) Result {
	switch {
	case code >= 200 && code < 300:
		return Result{Outcome: Accepted, Code: code}
	case code == 550, code == 551, code == 553:
		return Result{Outcome: Rejected, Code: code}
	case code == 450:
		return Result{Outcome: Accepted, Code: code, Greylisted: true}
	default:
		return Result{Outcome: Indeterminate, Code: code}
	}
}
