package builders

import (
	"context"
	"fmt"

	"github.com/ethpandaops/bundloor/pkg/bundle"
	"github.com/ethpandaops/bundloor/pkg/registry"
)

// GenericClient submits to any builder speaking eth_sendBundle, or
// mev_sendBundle when configured.
type GenericClient struct {
	*transport
	method string
}

// NewGenericClient creates a generic client. An empty method defaults to
// eth_sendBundle.
func NewGenericClient(b registry.Builder, opts Options) (*GenericClient, error) {
	method := opts.Method
	if method == "" {
		method = methodEthSendBundle
	}

	if method != methodEthSendBundle && method != methodMevSendBundle {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	return &GenericClient{
		transport: newTransport(b, opts),
		method:    method,
	}, nil
}

// Submit sends the bundle with every supported field.
func (c *GenericClient) Submit(ctx context.Context, b *bundle.StandardBundle) SubmissionResult {
	if c.method == methodMevSendBundle {
		args, err := buildMevSendBundleArgs(b)
		if err != nil {
			return SubmissionResult{Builder: c.Name(), Error: err.Error(), Attempts: 1}
		}

		return c.submit(ctx, b, c.method, args)
	}

	return c.submit(ctx, b, c.method, buildEthSendBundleArgs(b, allFields))
}
