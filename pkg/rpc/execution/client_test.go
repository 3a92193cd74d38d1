package execution

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode answers a fixed set of JSON-RPC methods.
func fakeNode(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)

		w.Header().Set("Content-Type", "application/json")

		result, ok := results[req.Method]
		if !ok {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32601,"message":"method not found"}}`))
			return
		}

		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
}

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	client, err := NewClient(context.Background(), srv.URL, log)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestTargetBlock_IsLatestPlusOne(t *testing.T) {
	srv := fakeNode(t, map[string]string{"eth_blockNumber": `"0x10"`})
	defer srv.Close()

	target, err := testClient(t, srv).TargetBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(17), target)
}

func TestGetChainID(t *testing.T) {
	srv := fakeNode(t, map[string]string{"eth_chainId": `"0x1"`})
	defer srv.Close()

	chainID, err := testClient(t, srv).GetChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), chainID.Int64())
}

func TestGetBlockNumber_Error(t *testing.T) {
	srv := fakeNode(t, map[string]string{})
	defer srv.Close()

	_, err := testClient(t, srv).GetBlockNumber(context.Background())
	assert.ErrorContains(t, err, "failed to get block number")
}
