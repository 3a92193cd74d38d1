package builders

import (
	"context"

	"github.com/ethpandaops/bundloor/pkg/bundle"
	"github.com/ethpandaops/bundloor/pkg/registry"
)

// BuilderNetClient submits to the Flashbots BuilderNet endpoint. Requests
// must carry an X-Flashbots-Signature header.
type BuilderNetClient struct {
	*transport
}

// NewBuilderNetClient creates a BuilderNet client. A signer is required.
func NewBuilderNetClient(b registry.Builder, opts Options) (*BuilderNetClient, error) {
	if opts.Signer == nil {
		return nil, ErrSignerRequired
	}

	return &BuilderNetClient{transport: newTransport(b, opts)}, nil
}

// Submit sends the bundle via eth_sendBundle including the builder allow-list.
func (c *BuilderNetClient) Submit(ctx context.Context, b *bundle.StandardBundle) SubmissionResult {
	args := buildEthSendBundleArgs(b, fieldReverting|fieldReplacement|fieldBuilders)

	return c.submit(ctx, b, methodEthSendBundle, args)
}
