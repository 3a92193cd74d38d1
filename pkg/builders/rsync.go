package builders

import (
	"context"

	"github.com/ethpandaops/bundloor/pkg/bundle"
	"github.com/ethpandaops/bundloor/pkg/registry"
)

// RsyncClient submits to rsync-builder, which honors timestamp bounds.
type RsyncClient struct {
	*transport
}

// NewRsyncClient creates an rsync client.
func NewRsyncClient(b registry.Builder, opts Options) *RsyncClient {
	return &RsyncClient{transport: newTransport(b, opts)}
}

// Submit sends the bundle via eth_sendBundle.
func (c *RsyncClient) Submit(ctx context.Context, b *bundle.StandardBundle) SubmissionResult {
	args := buildEthSendBundleArgs(b, fieldReverting|fieldTimestamps)

	return c.submit(ctx, b, methodEthSendBundle, args)
}
