// Package wallet holds the signing session used for write actions.
package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Session is a connected signing account bound to one chain. A nil Session
// means no wallet is configured and every write action must be refused
// before any chain call.
type Session struct {
	address common.Address
	chainID *big.Int
	opts    *bind.TransactOpts
}

// NewSession derives a session from a hex-encoded private key. The key is
// the only secret held; it never leaves the signer in bind.TransactOpts.
func NewSession(privateKeyHex string, chainID int64) (*Session, error) {
	key := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if key == "" {
		return nil, fmt.Errorf("signer private key is empty")
	}

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("invalid signer private key: %w", err)
	}

	id := big.NewInt(chainID)
	opts, err := bind.NewKeyedTransactorWithChainID(privateKey, id)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor for chain %d: %w", chainID, err)
	}

	return &Session{
		address: crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID: id,
		opts:    opts,
	}, nil
}

// Connected reports whether a signing account is available
func (s *Session) Connected() bool {
	return s != nil && s.opts != nil
}

// Address returns the connected account address
func (s *Session) Address() common.Address {
	if s == nil {
		return common.Address{}
	}
	return s.address
}

// ChainID returns the chain the session signs for
func (s *Session) ChainID() *big.Int {
	if s == nil {
		return nil
	}
	return new(big.Int).Set(s.chainID)
}

// TransactOpts returns per-call transact options carrying ctx. The shared
// opts are copied so concurrent actions cannot race on the Context field.
func (s *Session) TransactOpts(ctx context.Context) *bind.TransactOpts {
	if !s.Connected() {
		return nil
	}
	opts := *s.opts
	opts.Context = ctx
	return &opts
}
