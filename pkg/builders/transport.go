package builders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flashbots/go-utils/rpcclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ethpandaops/bundloor/pkg/bundle"
	"github.com/ethpandaops/bundloor/pkg/registry"
)

const healthBody = `{"jsonrpc":"2.0","id":1,"method":"net_version","params":[]}`

// transport is the JSON-RPC plumbing shared by every builder client.
type transport struct {
	builder    registry.Builder
	rpc        rpcclient.RPCClient
	httpClient *http.Client
	limiter    *rate.Limiter
	signed     bool
	log        logrus.FieldLogger
}

func newTransport(b registry.Builder, opts Options) *transport {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	rpcOpts := &rpcclient.RPCClientOpts{
		HTTPClient: httpClient,
		Signer:     opts.Signer,
	}

	t := &transport{
		builder:    b,
		rpc:        rpcclient.NewClientWithOpts(b.Endpoint, rpcOpts),
		httpClient: httpClient,
		signed:     opts.Signer != nil,
		log: log.WithFields(logrus.Fields{
			"component": "builder-client",
			"builder":   b.Name,
		}),
	}

	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}

		t.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return t
}

// Name returns the builder name.
func (t *transport) Name() string {
	return t.builder.Name
}

// HealthCheck checks the builder's health URL, or the RPC endpoint when none
// is configured. Any HTTP answer below 500 counts as healthy.
func (t *transport) HealthCheck(ctx context.Context) (status HealthStatus) {
	start := time.Now()
	status.Builder = t.builder.Name

	defer func() {
		if r := recover(); r != nil {
			status.Healthy = false
			status.Error = fmt.Sprintf("health check panicked: %v", r)
		}

		status.Latency = time.Since(start)
	}()

	req, err := t.healthRequest(ctx)
	if err != nil {
		status.Error = fmt.Sprintf("failed to create request: %v", err)
		return status
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		status.Error = fmt.Sprintf("request failed: %v", err)
		return status
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		status.Error = fmt.Sprintf("builder returned status %d", resp.StatusCode)
		return status
	}

	status.Healthy = true

	return status
}

func (t *transport) healthRequest(ctx context.Context) (*http.Request, error) {
	if t.builder.HealthURL != "" {
		return http.NewRequestWithContext(ctx, http.MethodGet, t.builder.HealthURL, nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.builder.Endpoint, bytes.NewReader([]byte(healthBody)))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

// submit sends one JSON-RPC request with the given method and params.
func (t *transport) submit(ctx context.Context, b *bundle.StandardBundle, method string, args any) SubmissionResult {
	start := time.Now()
	result := SubmissionResult{
		Builder:  t.builder.Name,
		Attempts: 1,
	}

	// eth_sendBundle has no field for privacy hints.
	if method == methodEthSendBundle {
		if p := b.Privacy(); p != nil && len(p.Hints) > 0 {
			t.log.WithField("hints", p.Hints).Warn("Builder does not accept privacy hints, sending bundle without them")
		}
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			result.Error = fmt.Sprintf("rate limit wait: %v", err)
			result.Latency = time.Since(start)

			return result
		}
	}

	var raw json.RawMessage

	err := t.rpc.CallFor(ctx, &raw, method, args)
	result.Latency = time.Since(start)

	if err != nil {
		result.Error = fmt.Sprintf("%s failed: %v", method, err)

		t.log.WithError(err).WithField("block", b.BlockNumber()).Debug("Bundle rejected")

		return result
	}

	result.Success = true
	result.BundleHash = parseBundleHash(raw)

	t.log.WithFields(logrus.Fields{
		"block":       b.BlockNumber(),
		"bundle_hash": result.BundleHash,
		"latency":     result.Latency,
	}).Debug("Bundle accepted")

	return result
}

// parseBundleHash accepts {"bundleHash": "0x.."} or a bare hash string.
func parseBundleHash(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var obj struct {
		BundleHash string `json:"bundleHash"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.BundleHash != "" {
		return obj.BundleHash
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && strings.HasPrefix(s, "0x") {
		return s
	}

	return ""
}
