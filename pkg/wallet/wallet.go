// Package wallet provides the searcher key used to sign builder requests and
// validation transactions.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/flashbots/go-utils/signature"
	"github.com/sirupsen/logrus"
)

const validationGasLimit = 21000

// Fallback fees for validation txs when no EL node is configured.
var (
	defaultGasTipCap = big.NewInt(params.GWei)
	defaultGasFeeCap = big.NewInt(30 * params.GWei)
)

// ChainReader is the subset of the EL client the wallet needs.
type ChainReader interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	GetNonce(ctx context.Context, address common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Wallet holds a searcher key.
type Wallet struct {
	privkey      *ecdsa.PrivateKey
	address      common.Address
	chain        ChainReader
	ephemeral    bool
	mu           sync.Mutex
	chainID      *big.Int
	pendingNonce uint64
	log          logrus.FieldLogger
}

// NewWallet creates a new wallet from a hex-encoded private key. chain may be
// nil, in which case SetChainID must be called before signing.
func NewWallet(
	privkeyHex string,
	chain ChainReader,
	log logrus.FieldLogger,
) (*Wallet, error) {
	privkeyHex = strings.TrimPrefix(privkeyHex, "0x")

	privkeyBytes, err := hex.DecodeString(privkeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key hex: %w", err)
	}

	if len(privkeyBytes) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(privkeyBytes))
	}

	privkey, err := crypto.ToECDSA(privkeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return newWallet(privkey, chain, false, log), nil
}

// NewEphemeralWallet creates a wallet with a random key. Its txs are only
// meant for dry runs.
func NewEphemeralWallet(chain ChainReader, log logrus.FieldLogger) (*Wallet, error) {
	privkey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	return newWallet(privkey, chain, true, log), nil
}

func newWallet(privkey *ecdsa.PrivateKey, chain ChainReader, ephemeral bool, log logrus.FieldLogger) *Wallet {
	address := crypto.PubkeyToAddress(privkey.PublicKey)

	return &Wallet{
		privkey:   privkey,
		address:   address,
		chain:     chain,
		ephemeral: ephemeral,
		log: log.WithFields(logrus.Fields{
			"component": "wallet",
			"address":   address.Hex(),
		}),
	}
}

// Address returns the wallet's Ethereum address.
func (w *Wallet) Address() common.Address {
	return w.address
}

// Ephemeral reports whether the key was randomly generated.
func (w *Wallet) Ephemeral() bool {
	return w.ephemeral
}

// Signer returns a Flashbots request signer for the wallet's key.
func (w *Wallet) Signer() *signature.Signer {
	s := signature.NewSigner(w.privkey)

	return &s
}

// SetChainID sets the chain ID used for signing.
func (w *Wallet) SetChainID(chainID *big.Int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.chainID = new(big.Int).Set(chainID)
}

// ChainID returns the chain ID, or nil if unknown.
func (w *Wallet) ChainID() *big.Int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.chainID
}

// Sync fetches chain ID and pending nonce from the chain.
func (w *Wallet) Sync(ctx context.Context) error {
	if w.chain == nil {
		return fmt.Errorf("no chain reader configured")
	}

	chainID, err := w.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %w", err)
	}

	nonce, err := w.chain.GetNonce(ctx, w.address)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %w", err)
	}

	w.mu.Lock()
	w.chainID = chainID
	w.pendingNonce = nonce
	w.mu.Unlock()

	w.log.WithFields(logrus.Fields{
		"chain_id": chainID.String(),
		"nonce":    nonce,
	}).Debug("Wallet synced")

	return nil
}

// fees returns tip and fee cap. With a chain reader the fee cap is
// base fee * 2 + tip.
func (w *Wallet) fees(ctx context.Context) (*big.Int, *big.Int, error) {
	if w.chain == nil || w.ephemeral {
		return new(big.Int).Set(defaultGasTipCap), new(big.Int).Set(defaultGasFeeCap), nil
	}

	gasTipCap, err := w.chain.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}

	header, err := w.chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	gasFeeCap := new(big.Int).Set(defaultGasFeeCap)
	if header.BaseFee != nil {
		gasFeeCap = new(big.Int).Mul(header.BaseFee, big.NewInt(2))
		gasFeeCap.Add(gasFeeCap, gasTipCap)
	}

	return gasTipCap, gasFeeCap, nil
}

// BuildValidationTx signs a zero-value transfer to the wallet itself. It is used
// to assemble a realistic dry-run bundle.
func (w *Wallet) BuildValidationTx(ctx context.Context) (*types.Transaction, error) {
	chainID := w.ChainID()
	if chainID == nil {
		return nil, fmt.Errorf("chain ID not set, call Sync or SetChainID first")
	}

	gasTipCap, gasFeeCap, err := w.fees(ctx)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	nonce := w.pendingNonce
	w.pendingNonce++
	w.mu.Unlock()

	to := w.address
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       validationGasLimit,
		To:        &to,
		Value:     big.NewInt(0),
	})

	return w.SignTransaction(tx)
}

// SignTransaction signs a transaction with the wallet's private key.
func (w *Wallet) SignTransaction(tx *types.Transaction) (*types.Transaction, error) {
	chainID := w.ChainID()
	if chainID == nil {
		return nil, fmt.Errorf("chain ID not set, call Sync first")
	}

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.privkey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return signedTx, nil
}
