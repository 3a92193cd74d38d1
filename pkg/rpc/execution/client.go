// Package execution is a thin JSON-RPC client for the execution layer node
// used to resolve target blocks, chain ID and validation transaction parameters.
package execution

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// Client handles standard JSON-RPC calls against an EL node.
type Client struct {
	ethClient *ethclient.Client
	log       logrus.FieldLogger
}

// NewClient creates a new EL JSON-RPC client.
func NewClient(ctx context.Context, rpcURL string, log logrus.FieldLogger) (*Client, error) {
	clientLog := log.WithField("component", "rpc-client")

	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EL RPC: %w", err)
	}

	return &Client{
		ethClient: ethclient.NewClient(rpcClient),
		log:       clientLog,
	}, nil
}

// Close closes the RPC connection.
func (c *Client) Close() {
	if c.ethClient != nil {
		c.ethClient.Close()
	}
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	chainID, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return chainID, nil
}

// GetBlockNumber returns the latest block number.
func (c *Client) GetBlockNumber(ctx context.Context) (uint64, error) {
	number, err := c.ethClient.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}

	return number, nil
}

// TargetBlock returns the block a bundle sent now should target: latest+1.
func (c *Client) TargetBlock(ctx context.Context) (uint64, error) {
	latest, err := c.GetBlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	c.log.WithField("latest", latest).Debug("Resolved target block")

	return latest + 1, nil
}

// GetNonce returns the pending nonce for an address.
func (c *Client) GetNonce(ctx context.Context, address common.Address) (uint64, error) {
	nonce, err := c.ethClient.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}

	return nonce, nil
}

// SuggestGasTipCap returns the suggested gas tip cap (priority fee).
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	gasTipCap, err := c.ethClient.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}

	return gasTipCap, nil
}

// HeaderByNumber returns the header for a block number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	header, err := c.ethClient.HeaderByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get header: %w", err)
	}

	return header, nil
}
