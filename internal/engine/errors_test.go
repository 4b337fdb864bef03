package engine

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindTransience(t *testing.T) {
	assert.True(t, KindTimeout.Transient())
	assert.True(t, KindHTTP.Transient())
	assert.True(t, KindUnreachable.Transient())
	assert.False(t, KindModelNotFound.Transient())
	assert.False(t, KindInvalidResponse.Transient())
}

func TestEveryKindCarriesAHint(t *testing.T) {
	kinds := []Kind{KindUnreachable, KindModelNotFound, KindTimeout, KindInvalidResponse, KindHTTP}
	for _, k := range kinds {
		assert.NotEmpty(t, k.Hint(), "kind %s", k)
	}
}

func TestModelNotFoundErrorMentionsPull(t *testing.T) {
	err := errf(KindModelNotFound, "llama3.1:8b", "missing")
	assert.Contains(t, err.Error(), "llama3.1:8b")
	assert.Contains(t, err.Error(), "ollama pull")
}

func TestClassifyTransportDeadline(t *testing.T) {
	err := classifyTransport("m", fmt.Errorf("do: %w", context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, err.Kind)
}

func TestClassifyTransportURLTimeout(t *testing.T) {
	urlErr := &url.Error{Op: "Post", URL: "http://x", Err: context.DeadlineExceeded}
	err := classifyTransport("m", urlErr)
	assert.Equal(t, KindTimeout, err.Kind)
}

func TestClassifyTransportDialFailure(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")}
	err := classifyTransport("m", &url.Error{Op: "Post", URL: "http://x", Err: opErr})
	assert.Equal(t, KindUnreachable, err.Kind)
}

func TestClassifyTransportDNSFailure(t *testing.T) {
	dnsErr := &net.DNSError{Err: "no such host", Name: "nope.invalid"}
	err := classifyTransport("m", &url.Error{Op: "Post", URL: "http://nope.invalid", Err: dnsErr})
	assert.Equal(t, KindUnreachable, err.Kind)
}

func TestClassifyTransportFallsBackToHTTP(t *testing.T) {
	err := classifyTransport("m", fmt.Errorf("something odd"))
	assert.Equal(t, KindHTTP, err.Kind)
}

func TestErrorUnwraps(t *testing.T) {
	inner := fmt.Errorf("boom")
	err := &Error{Kind: KindHTTP, Err: inner}
	require.ErrorIs(t, err, inner)
}
