// Package abis maps well-known contract kinds to their ABI definitions.
// Every contract is listed in a static table; nothing is resolved by name at
// runtime beyond a lookup in that table.
package abis

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract identifies a contract interface known to bundloor.
type Contract int

const (
	// ContractERC20 is the standard fungible token interface.
	ContractERC20 Contract = iota
	// ContractWETH9 is the wrapped ether contract.
	ContractWETH9
	// ContractUniswapV2Router is the Uniswap V2 router.
	ContractUniswapV2Router
	// ContractMulticall3 is the Multicall3 batching contract.
	ContractMulticall3

	numContracts
)

var contractNames = [numContracts]string{
	ContractERC20:           "erc20",
	ContractWETH9:           "weth9",
	ContractUniswapV2Router: "uniswap_v2_router",
	ContractMulticall3:      "multicall3",
}

var definitions = [numContracts]string{
	ContractERC20: `[
		{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
	]`,
	ContractWETH9: `[
		{"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
		{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"wad","type":"uint256"}],"outputs":[]}
	]`,
	ContractUniswapV2Router: `[
		{"type":"function","name":"swapExactTokensForTokens","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
		{"type":"function","name":"swapExactETHForTokens","stateMutability":"payable","inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
	]`,
	ContractMulticall3: `[
		{"type":"function","name":"aggregate3","stateMutability":"payable","inputs":[{"name":"calls","type":"tuple[]","components":[{"name":"target","type":"address"},{"name":"allowFailure","type":"bool"},{"name":"callData","type":"bytes"}]}],"outputs":[{"name":"returnData","type":"tuple[]","components":[{"name":"success","type":"bool"},{"name":"returnData","type":"bytes"}]}]}
	]`,
}

var (
	parsed     [numContracts]*abi.ABI
	parseErrs  [numContracts]error
	parseOnces [numContracts]sync.Once
)

// String returns the contract's registry name.
func (c Contract) String() string {
	if c < 0 || c >= numContracts {
		return "unknown"
	}

	return contractNames[c]
}

// All returns every registered contract in table order.
func All() []Contract {
	out := make([]Contract, 0, numContracts)
	for c := Contract(0); c < numContracts; c++ {
		out = append(out, c)
	}

	return out
}

// Lookup resolves a registry name to its contract.
func Lookup(name string) (Contract, bool) {
	name = strings.ToLower(strings.TrimSpace(name))

	for c, n := range contractNames {
		if n == name {
			return Contract(c), true
		}
	}

	return 0, false
}

// Get returns the parsed ABI for the contract. Definitions are parsed once.
func Get(c Contract) (*abi.ABI, error) {
	if c < 0 || c >= numContracts {
		return nil, fmt.Errorf("unknown contract %d", c)
	}

	parseOnces[c].Do(func() {
		a, err := abi.JSON(strings.NewReader(definitions[c]))
		if err != nil {
			parseErrs[c] = fmt.Errorf("failed to parse %s abi: %w", c, err)
			return
		}

		parsed[c] = &a
	})

	return parsed[c], parseErrs[c]
}

// MethodBySelector finds the first registered contract whose ABI has a method
// matching the 4-byte selector at the start of calldata.
func MethodBySelector(calldata []byte) (Contract, *abi.Method, bool) {
	if len(calldata) < 4 {
		return 0, nil, false
	}

	for _, c := range All() {
		a, err := Get(c)
		if err != nil {
			continue
		}

		method, err := a.MethodById(calldata[:4])
		if err == nil {
			return c, method, true
		}
	}

	return 0, nil, false
}
