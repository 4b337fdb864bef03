/*
PURPOSE:
  Closed error taxonomy for benchmark trials.
  The Trial Executor branches on the kind (retry or short-circuit), and
  user-facing reporting attaches a distinct corrective hint per kind.

REQUIREMENTS:
  User-specified:
  - Distinguish: backend unreachable, model not found, timeout,
    malformed response, generic HTTP/transport failure.
  - Every fatal condition pairs with a concrete corrective action.

  Implementation-discovered:
  - Retryability must be decidable without string matching, so the
    kind carries an explicit Transient() predicate.
  - Go's transport errors need unwrapping (net.Error, url.Error,
    context deadline) to classify reliably.

ARCHITECTURE INTEGRATION:
  - Produced by: internal/engine/client.go
  - Consumed by: internal/engine/trial.go, internal/engine/runner.go

ERROR HANDLING:
  - This IS the error handling.

IMPLEMENTATION RULES:
  - Kinds are a closed set. Do not add kinds without updating
    Transient() and Hint().
  - *Error implements error and Unwrap for errors.As/Is interop.

USAGE:
  var trialErr *engine.Error
  if errors.As(err, &trialErr) && trialErr.Kind.Transient() { retry }

RELATED FILES:
  - internal/engine/client.go
  - internal/engine/trial.go

MAINTENANCE:
  - Keep Hint() text actionable; it is printed verbatim to users.
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind identifies one class of trial failure.
type Kind string

const (
	// KindUnreachable covers connection refused, DNS failure, and
	// connect timeout. Fatal for the whole run only on the pre-flight
	// check; otherwise scoped to the current trial.
	KindUnreachable Kind = "backend_unreachable"
	// KindModelNotFound means the backend does not serve the model.
	// Retrying cannot change the outcome.
	KindModelNotFound Kind = "model_not_found"
	// KindTimeout means the per-request deadline was exceeded.
	KindTimeout Kind = "timeout"
	// KindInvalidResponse covers unparseable envelopes and responses
	// missing token counts. Fabricating a count would corrupt every
	// downstream comparison, so the trial fails instead.
	KindInvalidResponse Kind = "invalid_response"
	// KindHTTP is any other transport or HTTP-status failure.
	KindHTTP Kind = "http_failure"
)

// Transient reports whether a retry has a chance of succeeding.
func (k Kind) Transient() bool {
	switch k {
	case KindTimeout, KindHTTP, KindUnreachable:
		return true
	}
	return false
}

// Hint returns the corrective action shown to the user for this kind.
func (k Kind) Hint() string {
	switch k {
	case KindUnreachable:
		return "check that the backend is running and reachable (ollama serve)"
	case KindModelNotFound:
		return "pull the model first (ollama pull <model>)"
	case KindTimeout:
		return "increase --timeout or reduce --max-tokens"
	case KindInvalidResponse:
		return "the backend response is missing fields; check backend version compatibility"
	case KindHTTP:
		return "inspect the backend logs for the failing request"
	}
	return ""
}

// Error is a classified trial failure.
type Error struct {
	Kind  Kind
	Model string
	Err   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindModelNotFound:
		return fmt.Sprintf("model %q not found: %s", e.Model, e.Kind.Hint())
	case KindUnreachable:
		return fmt.Sprintf("backend unreachable: %v (%s)", e.Err, e.Kind.Hint())
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// errf builds a classified error from a formatted message.
func errf(kind Kind, modelName, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Model: modelName, Err: fmt.Errorf(format, args...)}
}

// classifyTransport maps a raw net/http client error onto the taxonomy.
// Timeouts win over everything else so the retry policy sees them; plain
// connect failures become KindUnreachable.
func classifyTransport(modelName string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Model: modelName, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Model: modelName, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// dial errors mean we never reached the backend
		if opErr.Op == "dial" {
			return &Error{Kind: KindUnreachable, Model: modelName, Err: err}
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Kind: KindUnreachable, Model: modelName, Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &Error{Kind: KindTimeout, Model: modelName, Err: err}
	}
	return &Error{Kind: KindHTTP, Model: modelName, Err: err}
}
