package bundle

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/ethpandaops/bundloor/pkg/abis"
)

// TxSummary describes one transaction of a bundle.
type TxSummary struct {
	Hash      common.Hash     `json:"hash"`
	From      common.Address  `json:"from"`
	To        *common.Address `json:"to,omitempty"`
	Value     *uint256.Int    `json:"value"`
	Nonce     uint64          `json:"nonce"`
	Contract  string          `json:"contract,omitempty"`
	Method    string          `json:"method,omitempty"`
	Reverting bool            `json:"reverting,omitempty"`
}

// Summary is the decoded view of a bundle.
type Summary struct {
	BlockNumber uint64       `json:"block_number"`
	BundleHash  common.Hash  `json:"bundle_hash"`
	Txs         []TxSummary  `json:"txs"`
	TotalValue  *uint256.Int `json:"total_value"`
}

// Inspect decodes each transaction, recovers its sender for chainID and
// resolves the called method through the ABI registry.
func (b *StandardBundle) Inspect(chainID *big.Int) (*Summary, error) {
	signer := types.LatestSignerForChainID(chainID)

	summary := &Summary{
		BlockNumber: b.blockNumber,
		BundleHash:  b.Hash(),
		Txs:         make([]TxSummary, 0, len(b.txs)),
		TotalValue:  new(uint256.Int),
	}

	for i, raw := range b.txs {
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("failed to decode tx %d: %w", i, err)
		}

		from, err := types.Sender(signer, tx)
		if err != nil {
			return nil, fmt.Errorf("failed to recover sender of tx %s: %w", tx.Hash().Hex(), err)
		}

		value, overflow := uint256.FromBig(tx.Value())
		if overflow {
			return nil, fmt.Errorf("tx %s value overflows uint256", tx.Hash().Hex())
		}

		if _, overflow := summary.TotalValue.AddOverflow(summary.TotalValue, value); overflow {
			return nil, fmt.Errorf("bundle value overflows uint256")
		}

		entry := TxSummary{
			Hash:      tx.Hash(),
			From:      from,
			To:        tx.To(),
			Value:     value,
			Nonce:     tx.Nonce(),
			Reverting: b.IsReverting(tx.Hash()),
		}

		if contract, method, ok := abis.MethodBySelector(tx.Data()); ok {
			entry.Contract = contract.String()
			entry.Method = method.Name
		}

		summary.Txs = append(summary.Txs, entry)
	}

	return summary, nil
}
