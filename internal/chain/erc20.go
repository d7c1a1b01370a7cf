package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// TokenGateway reads and writes ERC20 tokens. Contracts are bound per call
// since each project may use a different token.
type TokenGateway struct {
	client *ethclient.Client
}

// NewTokenGateway creates a token gateway on the given RPC client
func NewTokenGateway(client *ethclient.Client) *TokenGateway {
	return &TokenGateway{client: client}
}

func (g *TokenGateway) bound(tokenAddress string) (*bind.BoundContract, error) {
	if !ValidateAddress(tokenAddress) {
		return nil, fmt.Errorf("invalid token address: %s", tokenAddress)
	}
	addr := common.HexToAddress(tokenAddress)
	return bind.NewBoundContract(addr, erc20ABI, g.client, g.client, g.client), nil
}

// Symbol reads the token's display symbol
func (g *TokenGateway) Symbol(ctx context.Context, tokenAddress string) (string, error) {
	contract, err := g.bound(tokenAddress)
	if err != nil {
		return "", err
	}
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "symbol"); err != nil {
		return "", fmt.Errorf("symbol call failed for %s: %w", tokenAddress, err)
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// Decimals reads the token's decimal precision
func (g *TokenGateway) Decimals(ctx context.Context, tokenAddress string) (uint8, error) {
	contract, err := g.bound(tokenAddress)
	if err != nil {
		return 0, err
	}
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("decimals call failed for %s: %w", tokenAddress, err)
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// BalanceOf reads an account's token balance in base units
func (g *TokenGateway) BalanceOf(ctx context.Context, tokenAddress string, account common.Address) (*big.Int, error) {
	contract, err := g.bound(tokenAddress)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", account); err != nil {
		return nil, fmt.Errorf("balanceOf call failed for %s: %w", tokenAddress, err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Allowance reads how much the spender may pull from the owner's balance
func (g *TokenGateway) Allowance(ctx context.Context, tokenAddress string, owner, spender common.Address) (*big.Int, error) {
	contract, err := g.bound(tokenAddress)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "allowance", owner, spender); err != nil {
		return nil, fmt.Errorf("allowance call failed for %s: %w", tokenAddress, err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Approve submits an approval granting the spender up to amount
func (g *TokenGateway) Approve(opts *bind.TransactOpts, tokenAddress string, spender common.Address, amount *big.Int) (*ethtypes.Transaction, error) {
	contract, err := g.bound(tokenAddress)
	if err != nil {
		return nil, err
	}
	tx, err := contract.Transact(opts, "approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("approve transaction failed for %s: %w", tokenAddress, err)
	}
	log.Printf("[Token] approve submitted, token=%s spender=%s amount=%s tx=%s", tokenAddress, spender.Hex(), amount, tx.Hash().Hex())
	return tx, nil
}

// WaitMined blocks until the transaction is mined and returns an error when
// the receipt reports a revert.
func (g *TokenGateway) WaitMined(ctx context.Context, tx *ethtypes.Transaction) error {
	receipt, err := bind.WaitMined(ctx, g.client, tx)
	if err != nil {
		return fmt.Errorf("waiting for tx %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return nil
}
