package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Dial connects to an Ethereum JSON-RPC endpoint
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint: %w", err)
	}
	return client, nil
}

// VerifyChainID checks that the connected node serves the expected chain,
// catching a misconfigured RPC URL before any transaction is signed.
func VerifyChainID(ctx context.Context, client *ethclient.Client, expected int64) error {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chain id: %w", err)
	}
	if chainID.Cmp(big.NewInt(expected)) != 0 {
		return fmt.Errorf("connected to chain %s, expected %d", chainID, expected)
	}
	return nil
}
