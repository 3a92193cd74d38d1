package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/bundloor/pkg/builders"
	"github.com/ethpandaops/bundloor/pkg/bundle"
	"github.com/ethpandaops/bundloor/pkg/config"
	"github.com/ethpandaops/bundloor/pkg/manager"
	"github.com/ethpandaops/bundloor/pkg/metrics"
	"github.com/ethpandaops/bundloor/pkg/registry"
	"github.com/ethpandaops/bundloor/pkg/report"
)

type stubClient struct {
	name    string
	healthy bool
}

func (s *stubClient) Name() string { return s.name }

func (s *stubClient) HealthCheck(context.Context) builders.HealthStatus {
	return builders.HealthStatus{Builder: s.name, Healthy: s.healthy}
}

func (s *stubClient) Submit(_ context.Context, b *bundle.StandardBundle) builders.SubmissionResult {
	return builders.SubmissionResult{Builder: s.name, Success: true, BundleHash: b.Hash().Hex(), Attempts: 1}
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func newTestServer(t *testing.T, cfg config.APIConfig, healthy bool) (*Server, *httptest.Server) {
	t.Helper()

	reg, err := registry.New([]registry.Builder{
		{Name: "Titan", Kind: registry.KindTitan, Endpoint: "https://titan.example", MarketShare: 0.50, Active: true},
		{Name: "BuilderNet", Kind: registry.KindBuilderNet, Endpoint: "https://buildernet.example", MarketShare: 0.30, Active: true},
		{Name: "Quasar", Kind: registry.KindQuasar, Endpoint: "https://quasar.example", MarketShare: 0.16, Active: true},
		{Name: "Rsync", Kind: registry.KindRsync, Endpoint: "https://rsync.example", MarketShare: 0.10, Active: true},
	})
	require.NoError(t, err)

	clients := make(map[string]builders.Client, reg.Len())
	for _, b := range reg.All() {
		clients[b.Name] = &stubClient{name: b.Name, healthy: healthy}
	}

	promReg := prometheus.NewRegistry()
	m, err := metrics.NewMetrics(promReg)
	require.NoError(t, err)

	mgr, err := manager.NewManager(manager.DefaultConfig(), reg, clients, m, testLogger())
	require.NoError(t, err)

	srv := NewServer(cfg, mgr, promReg, testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return srv, ts
}

func bundleBody(t *testing.T) []byte {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	chainID := big.NewInt(1)
	to := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(100),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(1),
	}), types.LatestSignerForChainID(chainID), key)
	require.NoError(t, err)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	b, err := bundle.New(100, [][]byte{raw})
	require.NoError(t, err)

	body, err := json.Marshal(b)
	require.NoError(t, err)

	return body
}

func post(t *testing.T, url string, body []byte, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func TestGetBuilders(t *testing.T) {
	_, ts := newTestServer(t, config.APIConfig{}, true)

	resp, err := http.Get(ts.URL + "/api/builders")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[BuildersResponse](t, resp)
	assert.Equal(t, manager.DefaultTopN, out.TopN)
	require.Len(t, out.Builders, 4)
	assert.Equal(t, "Titan", out.Builders[0].Name)
}

func TestGetHealth(t *testing.T) {
	_, ts := newTestServer(t, config.APIConfig{}, true)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	plan := decode[manager.Plan](t, resp)
	assert.Len(t, plan.Health, 4)
	assert.Len(t, plan.Selected, 4)
	assert.InDelta(t, 1.06, plan.Coverage, 1e-9)
}

func TestDryRunBundle(t *testing.T) {
	_, ts := newTestServer(t, config.APIConfig{}, true)

	resp := post(t, ts.URL+"/api/bundles/dryrun", bundleBody(t), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	vr := decode[report.ValidationReport](t, resp)
	assert.True(t, vr.DryRun)
	assert.Equal(t, 4, vr.SelectedCount)
	assert.Equal(t, report.RecommendationExcellent, vr.Recommendation)
}

func TestDryRunBundle_InvalidBody(t *testing.T) {
	_, ts := newTestServer(t, config.APIConfig{}, true)

	resp := post(t, ts.URL+"/api/bundles/dryrun", []byte(`{"txs":[]}`), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts.URL+"/api/bundles/dryrun", []byte(`not json`), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitBundle_NoHealthyBuilders(t *testing.T) {
	_, ts := newTestServer(t, config.APIConfig{}, false)

	resp := post(t, ts.URL+"/api/bundles", bundleBody(t), "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	vr := decode[report.ValidationReport](t, resp)
	assert.Zero(t, vr.SelectedCount)
	assert.Zero(t, vr.Coverage)
	assert.Equal(t, report.RecommendationInvestigate, vr.Recommendation)
}

func TestSubmitBundle_RequiresTokenWhenConfigured(t *testing.T) {
	_, ts := newTestServer(t, config.APIConfig{TokenKey: "secret"}, true)
	body := bundleBody(t)

	resp := post(t, ts.URL+"/api/bundles", body, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = post(t, ts.URL+"/api/bundles", body, "garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ci",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	resp = post(t, ts.URL+"/api/bundles", body, signed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	vr := decode[report.ValidationReport](t, resp)
	assert.False(t, vr.DryRun)
	assert.InDelta(t, 1.06, vr.Coverage, 1e-9)
}

func TestSubmitBundle_AcceptsIssuedToken(t *testing.T) {
	_, ts := newTestServer(t, config.APIConfig{TokenKey: "secret", UserHeader: "X-User"}, true)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/auth/token", nil)
	require.NoError(t, err)
	req.Header.Set("x-user", "alice@example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	tok := decode[map[string]string](t, resp)
	assert.Equal(t, "alice@example.com", tok["user"])
	require.NotEmpty(t, tok["token"])

	submit := post(t, ts.URL+"/api/bundles", bundleBody(t), tok["token"])
	assert.Equal(t, http.StatusOK, submit.StatusCode)
}

func TestGetToken_RequiresUserHeader(t *testing.T) {
	_, ts := newTestServer(t, config.APIConfig{TokenKey: "secret", UserHeader: "X-User"}, true)

	resp, err := http.Get(ts.URL + "/auth/token")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	out := decode[map[string]string](t, resp)
	assert.Empty(t, out["token"])

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/auth/token", nil)
	require.NoError(t, err)
	req.Header.Set("X-User", "   ")

	blank, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer blank.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, blank.StatusCode)

	submit := post(t, ts.URL+"/api/bundles", bundleBody(t), out["token"])
	assert.Equal(t, http.StatusUnauthorized, submit.StatusCode)
}

func TestGetToken_RejectsWithoutConfiguredHeader(t *testing.T) {
	h := NewAuthHandler("auth", "", "tok")

	req := httptest.NewRequest(http.MethodGet, "/auth/token", nil)
	req.Header.Set("X-User", "alice@example.com")

	rec := httptest.NewRecorder()
	h.GetToken(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckAuthToken_RejectsExpiredAndForeignTokens(t *testing.T) {
	h := NewAuthHandler("auth", "", "tok")

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("tok"))
	require.NoError(t, err)
	assert.Nil(t, h.CheckAuthToken("Bearer "+expired))

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte("other"))
	require.NoError(t, err)
	assert.Nil(t, h.CheckAuthToken(foreign))

	valid, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte("auth"))
	require.NoError(t, err)
	assert.NotNil(t, h.CheckAuthToken("bearer "+valid))
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, config.APIConfig{}, true)

	health, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	health.Body.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "bundloor_health_checks_total")
}

func TestEventStreamManager_RelaysSubmissions(t *testing.T) {
	srv, ts := newTestServer(t, config.APIConfig{}, true)

	srv.eventStreamMgr.Start()
	defer srv.eventStreamMgr.Stop()

	ch := make(chan *StreamEvent, 16)
	srv.eventStreamMgr.AddClient(ch)
	assert.Equal(t, 1, srv.eventStreamMgr.ClientCount())

	resp := post(t, ts.URL+"/api/bundles", bundleBody(t), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	seen := make(map[string]bool)

	for len(seen) < 4 {
		select {
		case ev := <-ch:
			require.Equal(t, EventTypeSubmission, ev.Type)

			data, ok := ev.Data.(SubmissionStreamEvent)
			require.True(t, ok)
			assert.True(t, data.Success)
			assert.Equal(t, uint64(100), data.BlockNumber)

			seen[data.Builder] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, got %d", len(seen))
		}
	}

	srv.eventStreamMgr.RemoveClient(ch)
	assert.Zero(t, srv.eventStreamMgr.ClientCount())
}

func TestEventStream_WritesSSE(t *testing.T) {
	srv, ts := newTestServer(t, config.APIConfig{}, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool {
		return srv.eventStreamMgr.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	srv.eventStreamMgr.Broadcast(&StreamEvent{Type: EventTypeHealth, Timestamp: 1, Data: "ping"})

	buf := make([]byte, 256)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), `data: {"type":"health","timestamp":1,"data":"ping"}`)
}
