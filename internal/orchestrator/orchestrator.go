package orchestrator

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/fairfund-scanner/internal/chain"
	"github.com/fairfund-scanner/internal/config"
	"github.com/fairfund-scanner/internal/logging"
	"github.com/fairfund-scanner/internal/token"
	"github.com/fairfund-scanner/internal/types"
	"github.com/fairfund-scanner/internal/wallet"
)

// EscrowWriter covers the escrow contract calls the pipelines submit
type EscrowWriter interface {
	Address() common.Address
	CreateProject(opts *bind.TransactOpts, tokenAddress common.Address, title, descriptionURI string, goal, duration *big.Int) (*ethtypes.Transaction, error)
	FundProject(opts *bind.TransactOpts, projectID, amount *big.Int) (*ethtypes.Transaction, error)
	Refund(opts *bind.TransactOpts, projectID *big.Int) (*ethtypes.Transaction, error)
	WithdrawFunds(opts *bind.TransactOpts, projectID *big.Int) (*ethtypes.Transaction, error)
	WaitMined(ctx context.Context, tx *ethtypes.Transaction) error
}

// TokenCaller covers the ERC20 calls the fund pipeline needs
type TokenCaller interface {
	BalanceOf(ctx context.Context, tokenAddress string, account common.Address) (*big.Int, error)
	Allowance(ctx context.Context, tokenAddress string, owner, spender common.Address) (*big.Int, error)
	Approve(opts *bind.TransactOpts, tokenAddress string, spender common.Address, amount *big.Int) (*ethtypes.Transaction, error)
	WaitMined(ctx context.Context, tx *ethtypes.Transaction) error
}

// MetadataResolver resolves ERC20 display metadata
type MetadataResolver interface {
	Resolve(ctx context.Context, tokenAddress string) token.Metadata
}

// Invalidator drops cached projections after a confirmed write
type Invalidator interface {
	InvalidateProject(ctx context.Context, id uint64) error
	InvalidateList(ctx context.Context) error
}

// Orchestrator runs the write-action pipelines. Steps are strictly
// sequential: a transaction must confirm on-chain before the next step runs,
// so later reads never see stale allowance or balance. Failed pipelines are
// never retried automatically.
type Orchestrator struct {
	session  *wallet.Session
	escrow   EscrowWriter
	tokens   TokenCaller
	resolver MetadataResolver
	cache    Invalidator
	cfg      *config.Config
	registry *stateRegistry
}

// New creates an orchestrator. The session may be nil, in which case every
// action fails its precondition without touching the chain.
func New(session *wallet.Session, escrow EscrowWriter, tokens TokenCaller, resolver MetadataResolver, cache Invalidator, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		session:  session,
		escrow:   escrow,
		tokens:   tokens,
		resolver: resolver,
		cache:    cache,
		cfg:      cfg,
		registry: newStateRegistry(time.Now),
	}
}

// State returns the latest observed state for an (action, project) pair
func (o *Orchestrator) State(action types.ActionKind, projectID uint64) ActionState {
	return o.registry.get(action, projectID)
}

// Begin atomically reserves an (action, project) pair as pending before its
// pipeline is launched. It returns false when a run is already pending,
// leaving that run untouched. Every pipeline ends in a terminal registry
// write, which releases the reservation.
func (o *Orchestrator) Begin(action types.ActionKind, projectID uint64) (ActionState, bool) {
	return o.registry.begin(action, projectID)
}

// Fund contributes amountInput (a decimal token amount) to a project.
// Pipeline: precondition -> resolve metadata -> parse amount -> allowance
// check -> conditional approve + wait -> balance check -> fundProject ->
// wait -> invalidate caches.
func (o *Orchestrator) Fund(ctx context.Context, projectID uint64, tokenAddress, amountInput string) ActionState {
	const action = types.ActionFund

	if !o.session.Connected() {
		return o.registry.fail(action, projectID, "", "",
			types.NewServiceError(types.ErrCodeWalletNotConnected, "wallet not connected"))
	}
	if !chain.ValidateAddress(tokenAddress) {
		return o.registry.fail(action, projectID, "", "",
			types.NewServiceError(types.ErrCodeInvalidInput, "invalid token address"))
	}

	md := o.resolver.Resolve(ctx, tokenAddress)

	amount, err := token.ParseUnits(amountInput, md.Decimals)
	if err != nil || amount.Sign() <= 0 {
		return o.registry.fail(action, projectID, "", "",
			types.NewServiceError(types.ErrCodeInvalidAmount, "invalid contribution amount"))
	}

	backer := o.session.Address()
	spender := o.escrow.Address()

	o.registry.pending(action, projectID, StepCheckingAllowance, "")
	allowance, err := o.tokens.Allowance(ctx, tokenAddress, backer, spender)
	if err != nil {
		return o.registry.fail(action, projectID, StepCheckingAllowance, "", err)
	}

	if allowance.Cmp(amount) < 0 {
		o.registry.pending(action, projectID, StepApproving, "")
		approveTx, err := o.tokens.Approve(o.session.TransactOpts(ctx), tokenAddress, spender, amount)
		if err != nil {
			return o.registry.fail(action, projectID, StepApproving, "", err)
		}
		if err := o.tokens.WaitMined(ctx, approveTx); err != nil {
			return o.registry.fail(action, projectID, StepApproving, approveTx.Hash().Hex(), err)
		}
	}

	o.registry.pending(action, projectID, StepCheckingBalance, "")
	balance, err := o.tokens.BalanceOf(ctx, tokenAddress, backer)
	if err != nil {
		return o.registry.fail(action, projectID, StepCheckingBalance, "", err)
	}
	if balance.Cmp(amount) < 0 {
		// Guaranteed revert, not worth the gas.
		return o.registry.fail(action, projectID, StepCheckingBalance, "",
			types.NewServiceError(types.ErrCodeInsufficientBalance, "insufficient balance"))
	}

	o.registry.pending(action, projectID, StepSubmitting, "")
	tx, err := o.escrow.FundProject(o.session.TransactOpts(ctx), newID(projectID), amount)
	if err != nil {
		return o.registry.fail(action, projectID, StepSubmitting, "", err)
	}

	o.registry.pending(action, projectID, StepConfirming, tx.Hash().Hex())
	if err := o.escrow.WaitMined(ctx, tx); err != nil {
		return o.registry.fail(action, projectID, StepConfirming, tx.Hash().Hex(), err)
	}

	o.invalidateProject(ctx, projectID)
	return o.registry.succeed(action, projectID, tx.Hash().Hex())
}

// Refund reclaims the connected account's contribution from a project
func (o *Orchestrator) Refund(ctx context.Context, projectID uint64) ActionState {
	return o.submitAndConfirm(ctx, types.ActionRefund, projectID, func(opts *bind.TransactOpts) (*ethtypes.Transaction, error) {
		return o.escrow.Refund(opts, newID(projectID))
	})
}

// Withdraw moves a funded project's balance to its creator
func (o *Orchestrator) Withdraw(ctx context.Context, projectID uint64) ActionState {
	return o.submitAndConfirm(ctx, types.ActionWithdraw, projectID, func(opts *bind.TransactOpts) (*ethtypes.Transaction, error) {
		return o.escrow.WithdrawFunds(opts, newID(projectID))
	})
}

// submitAndConfirm runs the shared precondition/submit/confirm/invalidate
// shape of the single-call pipelines.
func (o *Orchestrator) submitAndConfirm(ctx context.Context, action types.ActionKind, projectID uint64, submit func(*bind.TransactOpts) (*ethtypes.Transaction, error)) ActionState {
	if !o.session.Connected() {
		return o.registry.fail(action, projectID, "", "",
			types.NewServiceError(types.ErrCodeWalletNotConnected, "wallet not connected"))
	}

	o.registry.pending(action, projectID, StepSubmitting, "")
	tx, err := submit(o.session.TransactOpts(ctx))
	if err != nil {
		return o.registry.fail(action, projectID, StepSubmitting, "", err)
	}

	o.registry.pending(action, projectID, StepConfirming, tx.Hash().Hex())
	if err := o.escrow.WaitMined(ctx, tx); err != nil {
		return o.registry.fail(action, projectID, StepConfirming, tx.Hash().Hex(), err)
	}

	o.invalidateProject(ctx, projectID)
	return o.registry.succeed(action, projectID, tx.Hash().Hex())
}

// CreateInput is a request to register a new campaign
type CreateInput struct {
	TokenAddress   string
	Title          string
	DescriptionURI string
	Goal           string // decimal token amount
	Duration       time.Duration
}

// Create validates and submits a new campaign. The token must be on the
// configured allowlist; the goal is parsed against the allowlist decimals
// when set, resolved metadata otherwise. Create is tracked under project id
// 0 since the new campaign has no id until the contract assigns one.
func (o *Orchestrator) Create(ctx context.Context, input CreateInput) ActionState {
	const action = types.ActionCreate

	if !o.session.Connected() {
		return o.registry.fail(action, 0, "", "",
			types.NewServiceError(types.ErrCodeWalletNotConnected, "wallet not connected"))
	}

	if strings.TrimSpace(input.Title) == "" {
		return o.registry.fail(action, 0, "", "",
			types.NewServiceError(types.ErrCodeInvalidInput, "title is required"))
	}
	if input.Duration <= 0 {
		return o.registry.fail(action, 0, "", "",
			types.NewServiceError(types.ErrCodeInvalidInput, "duration must be positive"))
	}

	allowed, ok := o.cfg.AllowedToken(input.TokenAddress)
	if !ok {
		return o.registry.fail(action, 0, "", "",
			types.NewServiceError(types.ErrCodeUnsupportedToken, "token is not supported for new campaigns"))
	}

	var decimals uint8
	if allowed.Decimals != nil {
		decimals = uint8(*allowed.Decimals)
	} else {
		decimals = o.resolver.Resolve(ctx, input.TokenAddress).Decimals
	}

	goal, err := token.ParseUnits(input.Goal, decimals)
	if err != nil || goal.Sign() <= 0 {
		return o.registry.fail(action, 0, "", "",
			types.NewServiceError(types.ErrCodeInvalidAmount, "invalid goal amount"))
	}

	o.registry.pending(action, 0, StepSubmitting, "")
	tx, err := o.escrow.CreateProject(
		o.session.TransactOpts(ctx),
		common.HexToAddress(input.TokenAddress),
		strings.TrimSpace(input.Title),
		strings.TrimSpace(input.DescriptionURI),
		goal,
		big.NewInt(int64(input.Duration/time.Second)),
	)
	if err != nil {
		return o.registry.fail(action, 0, StepSubmitting, "", err)
	}

	o.registry.pending(action, 0, StepConfirming, tx.Hash().Hex())
	if err := o.escrow.WaitMined(ctx, tx); err != nil {
		return o.registry.fail(action, 0, StepConfirming, tx.Hash().Hex(), err)
	}

	if err := o.cache.InvalidateList(ctx); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("cache invalidation failed after create")
	}
	return o.registry.succeed(action, 0, tx.Hash().Hex())
}

func (o *Orchestrator) invalidateProject(ctx context.Context, projectID uint64) {
	if err := o.cache.InvalidateProject(ctx, projectID); err != nil {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"project": projectID,
		}).WithError(err).Warn("cache invalidation failed after write")
	}
}

func newID(projectID uint64) *big.Int {
	return new(big.Int).SetUint64(projectID)
}
