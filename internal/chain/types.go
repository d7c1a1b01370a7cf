package chain

import (
	"math/big"
	"regexp"

	"github.com/ethereum/go-ethereum/common"
)

// addressRegex validates Ethereum address format (0x + 40 hex chars)
var addressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// ValidateAddress checks whether a string is a well-formed Ethereum address
func ValidateAddress(address string) bool {
	return addressRegex.MatchString(address)
}

// NormalizeAddress returns the EIP-55 checksummed form of a well-formed
// address. Malformed input is returned unchanged so callers can still render
// whatever the contract handed them.
func NormalizeAddress(address string) string {
	if !ValidateAddress(address) {
		return address
	}
	return common.HexToAddress(address).Hex()
}

// RawProject mirrors the escrow contract's project struct. Field names must
// match the ABI tuple component names for unpacking.
type RawProject struct {
	Creator         common.Address
	TokenAddress    common.Address
	Title           string
	DescriptionURI  string
	Goal            *big.Int
	Deadline        *big.Int
	TotalRaised     *big.Int
	TotalRefunded   *big.Int
	Withdrawn       bool
	Cancelled       bool
	PausedByCreator bool
}

// Contribution is a backer's position in a project as stored on chain.
// Amount is the live contribution, Refunded the total already returned.
type Contribution struct {
	Amount   *big.Int
	Refunded *big.Int
}
