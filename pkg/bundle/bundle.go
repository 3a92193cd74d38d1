// Package bundle defines the builder-agnostic bundle submitted to every
// selected builder.
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

var (
	// ErrEmptyBundle is returned when a bundle has no transactions.
	ErrEmptyBundle = errors.New("bundle has no transactions")
	// ErrInvalidBlock is returned for a zero target block.
	ErrInvalidBlock = errors.New("target block must be greater than zero")
)

// Privacy carries MEV-Share style privacy directives.
type Privacy struct {
	Hints    []string `json:"hints,omitempty"`
	Builders []string `json:"builders,omitempty"`
}

// StandardBundle is an ordered list of signed raw transactions targeting one
// block. It is immutable once built; accessors return copies.
type StandardBundle struct {
	blockNumber       uint64
	txs               []hexutil.Bytes
	txHashes          []common.Hash
	privacy           *Privacy
	minTimestamp      uint64
	maxTimestamp      uint64
	revertingTxHashes []common.Hash
	replacementUUID   *uuid.UUID
}

// Option customizes a bundle at construction.
type Option func(*StandardBundle)

// WithPrivacy sets the privacy hints and builder allow-list.
func WithPrivacy(hints, builders []string) Option {
	return func(b *StandardBundle) {
		b.privacy = &Privacy{
			Hints:    append([]string(nil), hints...),
			Builders: append([]string(nil), builders...),
		}
	}
}

// WithTimestamps bounds the block timestamp the bundle is valid for. Zero
// means unbounded.
func WithTimestamps(minTimestamp, maxTimestamp uint64) Option {
	return func(b *StandardBundle) {
		b.minTimestamp = minTimestamp
		b.maxTimestamp = maxTimestamp
	}
}

// WithRevertingTxHashes marks transactions that may revert without
// invalidating the bundle.
func WithRevertingTxHashes(hashes ...common.Hash) Option {
	return func(b *StandardBundle) {
		b.revertingTxHashes = append([]common.Hash(nil), hashes...)
	}
}

// WithReplacementUUID makes the bundle replaceable by a later bundle with the
// same UUID.
func WithReplacementUUID(id uuid.UUID) Option {
	return func(b *StandardBundle) {
		b.replacementUUID = &id
	}
}

// New decodes every raw transaction and builds a bundle for blockNumber.
func New(blockNumber uint64, rawTxs [][]byte, opts ...Option) (*StandardBundle, error) {
	if len(rawTxs) == 0 {
		return nil, ErrEmptyBundle
	}

	if blockNumber == 0 {
		return nil, ErrInvalidBlock
	}

	b := &StandardBundle{
		blockNumber: blockNumber,
		txs:         make([]hexutil.Bytes, 0, len(rawTxs)),
		txHashes:    make([]common.Hash, 0, len(rawTxs)),
	}

	for i, raw := range rawTxs {
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("failed to decode tx %d: %w", i, err)
		}

		b.txs = append(b.txs, append(hexutil.Bytes(nil), raw...))
		b.txHashes = append(b.txHashes, tx.Hash())
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// BlockNumber returns the target block.
func (b *StandardBundle) BlockNumber() uint64 {
	return b.blockNumber
}

// Txs returns copies of the raw signed transactions in bundle order.
func (b *StandardBundle) Txs() []hexutil.Bytes {
	out := make([]hexutil.Bytes, len(b.txs))
	for i, tx := range b.txs {
		out[i] = append(hexutil.Bytes(nil), tx...)
	}

	return out
}

// TxHashes returns the transaction hashes in bundle order.
func (b *StandardBundle) TxHashes() []common.Hash {
	return append([]common.Hash(nil), b.txHashes...)
}

// Privacy returns the privacy directives, or nil when none were set.
func (b *StandardBundle) Privacy() *Privacy {
	if b.privacy == nil {
		return nil
	}

	return &Privacy{
		Hints:    append([]string(nil), b.privacy.Hints...),
		Builders: append([]string(nil), b.privacy.Builders...),
	}
}

// Timestamps returns the min and max timestamp bounds.
func (b *StandardBundle) Timestamps() (uint64, uint64) {
	return b.minTimestamp, b.maxTimestamp
}

// RevertingTxHashes returns the hashes allowed to revert.
func (b *StandardBundle) RevertingTxHashes() []common.Hash {
	return append([]common.Hash(nil), b.revertingTxHashes...)
}

// ReplacementUUID returns the replacement UUID, if any.
func (b *StandardBundle) ReplacementUUID() (uuid.UUID, bool) {
	if b.replacementUUID == nil {
		return uuid.UUID{}, false
	}

	return *b.replacementUUID, true
}

// IsReverting reports whether the tx hash may revert.
func (b *StandardBundle) IsReverting(hash common.Hash) bool {
	for _, h := range b.revertingTxHashes {
		if h == hash {
			return true
		}
	}

	return false
}

// Hash is keccak256 over the concatenated transaction hashes.
func (b *StandardBundle) Hash() common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, txHash := range b.txHashes {
		h.Write(txHash.Bytes())
	}

	return common.BytesToHash(h.Sum(nil))
}

type bundleJSON struct {
	BlockNumber       hexutil.Uint64  `json:"blockNumber"`
	Txs               []hexutil.Bytes `json:"txs"`
	Privacy           *Privacy        `json:"privacy,omitempty"`
	MinTimestamp      uint64          `json:"minTimestamp,omitempty"`
	MaxTimestamp      uint64          `json:"maxTimestamp,omitempty"`
	RevertingTxHashes []common.Hash   `json:"revertingTxHashes,omitempty"`
	ReplacementUUID   *uuid.UUID      `json:"replacementUuid,omitempty"`
}

// MarshalJSON encodes the bundle for the HTTP API.
func (b *StandardBundle) MarshalJSON() ([]byte, error) {
	return json.Marshal(bundleJSON{
		BlockNumber:       hexutil.Uint64(b.blockNumber),
		Txs:               b.txs,
		Privacy:           b.privacy,
		MinTimestamp:      b.minTimestamp,
		MaxTimestamp:      b.maxTimestamp,
		RevertingTxHashes: b.revertingTxHashes,
		ReplacementUUID:   b.replacementUUID,
	})
}

// UnmarshalJSON decodes and validates a bundle.
func (b *StandardBundle) UnmarshalJSON(data []byte) error {
	var aux bundleJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	rawTxs := make([][]byte, len(aux.Txs))
	for i, tx := range aux.Txs {
		rawTxs[i] = tx
	}

	opts := []Option{WithTimestamps(aux.MinTimestamp, aux.MaxTimestamp)}

	if aux.Privacy != nil {
		opts = append(opts, WithPrivacy(aux.Privacy.Hints, aux.Privacy.Builders))
	}

	if len(aux.RevertingTxHashes) > 0 {
		opts = append(opts, WithRevertingTxHashes(aux.RevertingTxHashes...))
	}

	if aux.ReplacementUUID != nil {
		opts = append(opts, WithReplacementUUID(*aux.ReplacementUUID))
	}

	parsed, err := New(uint64(aux.BlockNumber), rawTxs, opts...)
	if err != nil {
		return err
	}

	*b = *parsed

	return nil
}
