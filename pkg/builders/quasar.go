package builders

import (
	"context"

	"github.com/ethpandaops/bundloor/pkg/bundle"
	"github.com/ethpandaops/bundloor/pkg/registry"
)

// QuasarClient submits to Quasar using only txs and blockNumber.
type QuasarClient struct {
	*transport
}

// NewQuasarClient creates a Quasar client.
func NewQuasarClient(b registry.Builder, opts Options) *QuasarClient {
	return &QuasarClient{transport: newTransport(b, opts)}
}

// Submit sends the bundle via eth_sendBundle.
func (c *QuasarClient) Submit(ctx context.Context, b *bundle.StandardBundle) SubmissionResult {
	return c.submit(ctx, b, methodEthSendBundle, buildEthSendBundleArgs(b, 0))
}
