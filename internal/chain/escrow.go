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

// EscrowGateway wraps the escrow contract behind typed read and write calls
type EscrowGateway struct {
	address  common.Address
	client   *ethclient.Client
	contract *bind.BoundContract
}

// NewEscrowGateway binds the escrow contract at the given address
func NewEscrowGateway(client *ethclient.Client, address string) (*EscrowGateway, error) {
	if !ValidateAddress(address) {
		return nil, fmt.Errorf("invalid escrow contract address: %s", address)
	}
	addr := common.HexToAddress(address)
	return &EscrowGateway{
		address:  addr,
		client:   client,
		contract: bind.NewBoundContract(addr, escrowABI, client, client, client),
	}, nil
}

// Address returns the bound contract address
func (g *EscrowGateway) Address() common.Address {
	return g.address
}

// ProjectCount returns the total number of projects ever created
func (g *EscrowGateway) ProjectCount(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "projectCount"); err != nil {
		return nil, fmt.Errorf("projectCount call failed: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// GetProject reads a single project record
func (g *EscrowGateway) GetProject(ctx context.Context, projectID *big.Int) (RawProject, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getProject", projectID); err != nil {
		return RawProject{}, fmt.Errorf("getProject(%s) call failed: %w", projectID, err)
	}
	return *abi.ConvertType(out[0], new(RawProject)).(*RawProject), nil
}

// GetProjects reads a contiguous page of project records starting at offset
func (g *EscrowGateway) GetProjects(ctx context.Context, offset, limit *big.Int) ([]RawProject, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getProjects", offset, limit); err != nil {
		return nil, fmt.Errorf("getProjects(%s, %s) call failed: %w", offset, limit, err)
	}
	return *abi.ConvertType(out[0], new([]RawProject)).(*[]RawProject), nil
}

// GetContribution reads a backer's contribution record for a project
func (g *EscrowGateway) GetContribution(ctx context.Context, projectID *big.Int, backer common.Address) (Contribution, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getContribution", projectID, backer); err != nil {
		return Contribution{}, fmt.Errorf("getContribution(%s, %s) call failed: %w", projectID, backer.Hex(), err)
	}
	return Contribution{
		Amount:   *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		Refunded: *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
	}, nil
}

// CreateProject submits a project creation transaction
func (g *EscrowGateway) CreateProject(opts *bind.TransactOpts, tokenAddress common.Address, title, descriptionURI string, goal, duration *big.Int) (*ethtypes.Transaction, error) {
	tx, err := g.contract.Transact(opts, "createProject", tokenAddress, title, descriptionURI, goal, duration)
	if err != nil {
		return nil, fmt.Errorf("createProject transaction failed: %w", err)
	}
	log.Printf("[Escrow] createProject submitted, tx=%s", tx.Hash().Hex())
	return tx, nil
}

// FundProject submits a funding transaction. The escrow pulls the amount via
// transferFrom, so the backer's allowance must already cover it.
func (g *EscrowGateway) FundProject(opts *bind.TransactOpts, projectID, amount *big.Int) (*ethtypes.Transaction, error) {
	tx, err := g.contract.Transact(opts, "fundProject", projectID, amount)
	if err != nil {
		return nil, fmt.Errorf("fundProject transaction failed: %w", err)
	}
	log.Printf("[Escrow] fundProject submitted, project=%s amount=%s tx=%s", projectID, amount, tx.Hash().Hex())
	return tx, nil
}

// Refund submits a refund claim for the caller's contribution
func (g *EscrowGateway) Refund(opts *bind.TransactOpts, projectID *big.Int) (*ethtypes.Transaction, error) {
	tx, err := g.contract.Transact(opts, "refund", projectID)
	if err != nil {
		return nil, fmt.Errorf("refund transaction failed: %w", err)
	}
	log.Printf("[Escrow] refund submitted, project=%s tx=%s", projectID, tx.Hash().Hex())
	return tx, nil
}

// WithdrawFunds submits the creator's withdrawal of a funded project's balance
func (g *EscrowGateway) WithdrawFunds(opts *bind.TransactOpts, projectID *big.Int) (*ethtypes.Transaction, error) {
	tx, err := g.contract.Transact(opts, "withdrawFunds", projectID)
	if err != nil {
		return nil, fmt.Errorf("withdrawFunds transaction failed: %w", err)
	}
	log.Printf("[Escrow] withdrawFunds submitted, project=%s tx=%s", projectID, tx.Hash().Hex())
	return tx, nil
}

// WaitMined blocks until the transaction is mined and returns an error when
// the receipt reports a revert.
func (g *EscrowGateway) WaitMined(ctx context.Context, tx *ethtypes.Transaction) error {
	receipt, err := bind.WaitMined(ctx, g.client, tx)
	if err != nil {
		return fmt.Errorf("waiting for tx %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return nil
}
