package builders

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/flashbots/go-utils/rpctypes"

	"github.com/ethpandaops/bundloor/pkg/bundle"
)

const revertModeAllow = "allow"

// ethSendBundleArgs is the eth_sendBundle params object. Fields a builder does
// not support are left empty and omitted.
type ethSendBundleArgs struct {
	Txs               []hexutil.Bytes `json:"txs"`
	BlockNumber       hexutil.Uint64  `json:"blockNumber"`
	MinTimestamp      *uint64         `json:"minTimestamp,omitempty"`
	MaxTimestamp      *uint64         `json:"maxTimestamp,omitempty"`
	RevertingTxHashes []common.Hash   `json:"revertingTxHashes,omitempty"`
	ReplacementUUID   string          `json:"replacementUuid,omitempty"`
	Builders          []string        `json:"builders,omitempty"`
}

type argField int

const (
	fieldReverting argField = 1 << iota
	fieldReplacement
	fieldTimestamps
	fieldBuilders
)

const allFields = fieldReverting | fieldReplacement | fieldTimestamps | fieldBuilders

func buildEthSendBundleArgs(b *bundle.StandardBundle, fields argField) ethSendBundleArgs {
	args := ethSendBundleArgs{
		Txs:         b.Txs(),
		BlockNumber: hexutil.Uint64(b.BlockNumber()),
	}

	if fields&fieldReverting != 0 {
		args.RevertingTxHashes = b.RevertingTxHashes()
	}

	if fields&fieldReplacement != 0 {
		if id, ok := b.ReplacementUUID(); ok {
			args.ReplacementUUID = id.String()
		}
	}

	if fields&fieldTimestamps != 0 {
		minTS, maxTS := b.Timestamps()
		if minTS > 0 {
			args.MinTimestamp = &minTS
		}

		if maxTS > 0 {
			args.MaxTimestamp = &maxTS
		}
	}

	if fields&fieldBuilders != 0 {
		if p := b.Privacy(); p != nil && len(p.Builders) > 0 {
			args.Builders = p.Builders
		}
	}

	return args
}

// mevBundlePrivacy is the mev_sendBundle privacy object.
type mevBundlePrivacy struct {
	Hints    []string `json:"hints,omitempty"`
	Builders []string `json:"builders,omitempty"`
}

// buildMevSendBundleArgs converts the bundle to the MEV-Share v0.1 format.
// The bundle is valid for its target block only.
func buildMevSendBundleArgs(b *bundle.StandardBundle) (*rpctypes.MevSendBundleArgs, error) {
	block := hexutil.Uint64(b.BlockNumber())

	args := &rpctypes.MevSendBundleArgs{
		Version: "v0.1",
		Inclusion: rpctypes.MevBundleInclusion{
			BlockNumber: block,
			MaxBlock:    block,
		},
		Body: make([]rpctypes.MevBundleBody, 0, len(b.TxHashes())),
	}

	hashes := b.TxHashes()

	for i, tx := range b.Txs() {
		raw := tx
		body := rpctypes.MevBundleBody{
			Tx:         &raw,
			RevertMode: rpctypes.RevertModeFail,
		}

		if b.IsReverting(hashes[i]) {
			body.RevertMode = revertModeAllow
		}

		args.Body = append(args.Body, body)
	}

	if p := b.Privacy(); p != nil && (len(p.Hints) > 0 || len(p.Builders) > 0) {
		encoded, err := json.Marshal(mevBundlePrivacy{
			Hints:    p.Hints,
			Builders: p.Builders,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode privacy: %w", err)
		}

		privacy := json.RawMessage(encoded)
		args.Privacy = &privacy
	}

	return args, nil
}
