// Package builders implements the per-builder bundle submission clients.
package builders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/signature"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/bundloor/pkg/bundle"
	"github.com/ethpandaops/bundloor/pkg/registry"
)

const (
	methodEthSendBundle = "eth_sendBundle"
	methodMevSendBundle = "mev_sendBundle"
)

var (
	// ErrSignerRequired is returned when a builder only accepts signed requests.
	ErrSignerRequired = errors.New("builder requires a signing key")
	// ErrUnsupportedMethod is returned for an unknown submission method.
	ErrUnsupportedMethod = errors.New("unsupported submission method")
)

// Client talks to one builder.
type Client interface {
	// Name returns the registry name of the builder.
	Name() string
	// HealthCheck checks the builder. It never fails; errors are reported as
	// an unhealthy status.
	HealthCheck(ctx context.Context) HealthStatus
	// Submit sends the bundle once and reports the outcome.
	Submit(ctx context.Context, b *bundle.StandardBundle) SubmissionResult
}

// HealthStatus is the outcome of one health check.
type HealthStatus struct {
	Builder string        `json:"builder"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// SubmissionResult is the outcome of submitting a bundle to one builder.
type SubmissionResult struct {
	Builder    string        `json:"builder"`
	Success    bool          `json:"success"`
	Latency    time.Duration `json:"latency"`
	BundleHash string        `json:"bundle_hash,omitempty"`
	Error      string        `json:"error,omitempty"`
	Attempts   int           `json:"attempts"`
}

// Options configure a client.
type Options struct {
	HTTPClient *http.Client
	// Signer adds the X-Flashbots-Signature header. Required for BuilderNet.
	Signer *signature.Signer
	// RateLimit in requests per second; 0 disables limiting.
	RateLimit float64
	// Method overrides the submission method for generic builders.
	Method string
	Log    logrus.FieldLogger
}

type constructor func(b registry.Builder, opts Options) (Client, error)

var constructors = map[registry.Kind]constructor{
	registry.KindTitan:  func(b registry.Builder, o Options) (Client, error) { return NewTitanClient(b, o), nil },
	registry.KindQuasar: func(b registry.Builder, o Options) (Client, error) { return NewQuasarClient(b, o), nil },
	registry.KindRsync:  func(b registry.Builder, o Options) (Client, error) { return NewRsyncClient(b, o), nil },
	registry.KindBuilderNet: func(b registry.Builder, o Options) (Client, error) {
		c, err := NewBuilderNetClient(b, o)
		if err != nil {
			return nil, err
		}

		return c, nil
	},
	registry.KindGeneric: func(b registry.Builder, o Options) (Client, error) {
		c, err := NewGenericClient(b, o)
		if err != nil {
			return nil, err
		}

		return c, nil
	},
}

// NewClient returns the client implementation for the builder's kind.
func NewClient(b registry.Builder, opts Options) (Client, error) {
	ctor, ok := constructors[b.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", registry.ErrUnknownBuilderKind, b.Kind)
	}

	return ctor(b, opts)
}
