package inference

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Generator sends one prompt pair to a text-generation model.
// Implementations make exactly one outbound call per Generate and never retry.
type Generator interface {
	Generate(ctx context.Context, system, user string, temperature float64) Outcome
}

// Reason classifies why a generation produced no usable text.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonTimeout   Reason = "timeout"
	ReasonCanceled  Reason = "canceled"
	ReasonTransport Reason = "transport"
	ReasonUpstream  Reason = "upstream"
	ReasonEmpty     Reason = "empty"
	ReasonBlocked   Reason = "blocked"
)

// Outcome is the result of a single generation: either Text, or a failure Reason with its cause.
type Outcome struct {
	Text   string
	Reason Reason
	Err    error
}

// OK reports whether the outcome carries usable text.
func (o Outcome) OK() bool { return o.Reason == ReasonNone && strings.TrimSpace(o.Text) != "" }

// Success wraps raw text, downgrading blank text to ReasonEmpty.
func Success(text string) Outcome {
	if strings.TrimSpace(text) == "" {
		return Failure(ReasonEmpty, ErrEmptyResponse)
	}
	return Outcome{Text: text}
}

// Failure builds a failed outcome.
func Failure(reason Reason, err error) Outcome {
	if reason == ReasonNone {
		reason = ReasonTransport
	}
	return Outcome{Reason: reason, Err: err}
}

var (
	ErrEmptyResponse = errors.New("empty completion content")
	ErrBlocked       = errors.New("response blocked by upstream filter")
)

// Classify maps a transport-level error to a Reason. upstream reports whether the
// error came back as a well-formed API error from the provider.
func Classify(err error, upstream bool) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case upstream:
		return ReasonUpstream
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonTransport
}

// ClampTemperature keeps t in [0,1].
func ClampTemperature(t float64) float64 {
	return min(max(t, 0), 1)
}
