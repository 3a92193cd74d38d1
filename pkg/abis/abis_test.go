package abis

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ParsesEveryDefinition(t *testing.T) {
	for _, c := range All() {
		a, err := Get(c)
		require.NoError(t, err, c.String())
		assert.NotEmpty(t, a.Methods, c.String())
	}
}

func TestLookup(t *testing.T) {
	c, ok := Lookup("WETH9")
	require.True(t, ok)
	assert.Equal(t, ContractWETH9, c)

	_, ok = Lookup("bridge")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Contract(99).String())
}

func TestMethodBySelector_ERC20Transfer(t *testing.T) {
	erc20, err := Get(ContractERC20)
	require.NoError(t, err)

	data, err := erc20.Pack("transfer", common.HexToAddress("0x1111"), big.NewInt(5))
	require.NoError(t, err)

	c, method, ok := MethodBySelector(data)
	require.True(t, ok)
	assert.Equal(t, ContractERC20, c)
	assert.Equal(t, "transfer", method.Name)
}

func TestMethodBySelector_WETHDeposit(t *testing.T) {
	weth, err := Get(ContractWETH9)
	require.NoError(t, err)

	data, err := weth.Pack("deposit")
	require.NoError(t, err)

	c, method, ok := MethodBySelector(data)
	require.True(t, ok)
	assert.Equal(t, ContractWETH9, c)
	assert.Equal(t, "deposit", method.Name)
}

func TestMethodBySelector_Unknown(t *testing.T) {
	_, _, ok := MethodBySelector([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.False(t, ok)

	_, _, ok = MethodBySelector([]byte{0x01})
	assert.False(t, ok)
}
