package checker

import (
	"time"

	"github.com/tunelo-project/tunelo/internal/upstream"
)

// OutcomeKind is the flat outcome enum a probe resolves to:
// { ok(elapsed), timeout, refused, protocol_error(kind), io_error }.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeTimeout
	OutcomeRefused
	OutcomeProtocolError
	OutcomeIOError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeRefused:
		return "refused"
	case OutcomeProtocolError:
		return "protocol_error"
	default:
		return "io_error"
	}
}

// Outcome is one probed upstream's result. Elapsed is only meaningful
// when Kind is OutcomeOK; when Kind is OutcomeProtocolError,
// ProtocolErrKind is the failing handshake's tunerr.HandshakeKind, or
// "http" when the plain-HTTP tier got a malformed status line.
type Outcome struct {
	Kind            OutcomeKind
	Elapsed         time.Duration
	ProtocolErrKind string
	Err             error
}

// ProbeResult pairs a probed upstream with its Outcome.
type ProbeResult struct {
	Upstream upstream.Proxy
	Outcome  Outcome
}
