package bundle

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/bundloor/pkg/abis"
)

var testChainID = big.NewInt(1)

func signedTx(t *testing.T, nonce uint64, value int64, data []byte) (*types.Transaction, []byte) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	to := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   testChainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(100),
		Gas:       60000,
		To:        &to,
		Value:     big.NewInt(value),
		Data:      data,
	}), types.LatestSignerForChainID(testChainID), key)
	require.NoError(t, err)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	return tx, raw
}

func TestNew_RejectsEmptyAndInvalid(t *testing.T) {
	_, err := New(100, nil)
	assert.ErrorIs(t, err, ErrEmptyBundle)

	_, raw := signedTx(t, 0, 1, nil)
	_, err = New(0, [][]byte{raw})
	assert.ErrorIs(t, err, ErrInvalidBlock)

	_, err = New(100, [][]byte{{0x01, 0x02}})
	assert.Error(t, err)
}

func TestNew_AccessorsReturnCopies(t *testing.T) {
	tx, raw := signedTx(t, 0, 1, nil)
	id := uuid.New()

	b, err := New(100, [][]byte{raw},
		WithPrivacy([]string{"calldata"}, []string{"titan"}),
		WithTimestamps(10, 20),
		WithRevertingTxHashes(tx.Hash()),
		WithReplacementUUID(id),
	)
	require.NoError(t, err)

	txs := b.Txs()
	txs[0][0] ^= 0xff
	assert.Equal(t, raw, []byte(b.Txs()[0]))

	privacy := b.Privacy()
	privacy.Builders[0] = "mutated"
	assert.Equal(t, []string{"titan"}, b.Privacy().Builders)

	minTS, maxTS := b.Timestamps()
	assert.Equal(t, uint64(10), minTS)
	assert.Equal(t, uint64(20), maxTS)
	assert.True(t, b.IsReverting(tx.Hash()))

	got, ok := b.ReplacementUUID()
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, []common.Hash{tx.Hash()}, b.TxHashes())
}

func TestHash_DependsOnOrder(t *testing.T) {
	_, rawA := signedTx(t, 0, 1, nil)
	_, rawB := signedTx(t, 1, 2, nil)

	ab, err := New(100, [][]byte{rawA, rawB})
	require.NoError(t, err)

	ba, err := New(100, [][]byte{rawB, rawA})
	require.NoError(t, err)

	again, err := New(200, [][]byte{rawA, rawB})
	require.NoError(t, err)

	assert.NotEqual(t, ab.Hash(), ba.Hash())
	assert.Equal(t, ab.Hash(), again.Hash())
}

func TestJSON_RoundTripKeepsOptions(t *testing.T) {
	tx, raw := signedTx(t, 0, 1, nil)

	b, err := New(0x1234, [][]byte{raw},
		WithPrivacy([]string{"hash"}, nil),
		WithRevertingTxHashes(tx.Hash()),
	)
	require.NoError(t, err)

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"blockNumber":"0x1234"`)

	var decoded StandardBundle
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, b.Hash(), decoded.Hash())
	assert.Equal(t, uint64(0x1234), decoded.BlockNumber())
	assert.True(t, decoded.IsReverting(tx.Hash()))
}

func TestUnmarshalJSON_RejectsEmpty(t *testing.T) {
	var decoded StandardBundle
	err := json.Unmarshal([]byte(`{"blockNumber":"0x10","txs":[]}`), &decoded)
	assert.ErrorIs(t, err, ErrEmptyBundle)
}

func TestInspect_SumsValueAndDecodesMethod(t *testing.T) {
	erc20, err := abis.Get(abis.ContractERC20)
	require.NoError(t, err)

	calldata, err := erc20.Pack("approve", common.HexToAddress("0x2222"), big.NewInt(7))
	require.NoError(t, err)

	_, rawA := signedTx(t, 0, 1000, nil)
	_, rawB := signedTx(t, 0, 234, calldata)

	b, err := New(100, [][]byte{rawA, rawB})
	require.NoError(t, err)

	summary, err := b.Inspect(testChainID)
	require.NoError(t, err)
	require.Len(t, summary.Txs, 2)

	assert.Equal(t, uint64(1234), summary.TotalValue.Uint64())
	assert.Empty(t, summary.Txs[0].Method)
	assert.Equal(t, "approve", summary.Txs[1].Method)
	assert.Equal(t, "erc20", summary.Txs[1].Contract)
	assert.NotEqual(t, common.Address{}, summary.Txs[0].From)
	assert.Equal(t, b.Hash(), summary.BundleHash)
}
