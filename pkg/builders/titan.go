package builders

import (
	"context"

	"github.com/ethpandaops/bundloor/pkg/bundle"
	"github.com/ethpandaops/bundloor/pkg/registry"
)

// TitanClient submits to Titan. Titan supports bundle replacement and
// reverting transaction hashes.
type TitanClient struct {
	*transport
}

// NewTitanClient creates a Titan client.
func NewTitanClient(b registry.Builder, opts Options) *TitanClient {
	return &TitanClient{transport: newTransport(b, opts)}
}

// Submit sends the bundle via eth_sendBundle.
func (c *TitanClient) Submit(ctx context.Context, b *bundle.StandardBundle) SubmissionResult {
	args := buildEthSendBundleArgs(b, fieldReverting|fieldReplacement)

	return c.submit(ctx, b, methodEthSendBundle, args)
}
