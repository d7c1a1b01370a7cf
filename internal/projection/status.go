// Package projection builds display-ready read models from raw on-chain
// campaign records.
package projection

import (
	"math/big"

	"github.com/fairfund-scanner/internal/chain"
	"github.com/fairfund-scanner/internal/types"
)

// DeriveStatus maps a raw campaign record and the current time to its
// lifecycle state. The rules are checked in priority order and the first
// match wins:
//
//  1. cancelled               -> failed
//  2. withdrawn               -> funded
//  3. totalRaised >= goal     -> funded
//  4. deadline <= nowSeconds  -> failed
//  5. otherwise               -> active
//
// Cancellation is authoritative and overrides a met goal. Withdrawal only
// happens after funding succeeded, so it is a safe funded proxy without
// re-checking raised against goal. A met goal outlives the deadline, so
// rule 3 runs before rule 4.
func DeriveStatus(record chain.RawProject, nowSeconds int64) types.ProjectStatus {
	switch {
	case record.Cancelled:
		return types.StatusFailed
	case record.Withdrawn:
		return types.StatusFunded
	case cmpOrZero(record.TotalRaised, record.Goal) >= 0:
		return types.StatusFunded
	case unixOrZero(record.Deadline) <= nowSeconds:
		return types.StatusFailed
	default:
		return types.StatusActive
	}
}

func cmpOrZero(a, b *big.Int) int {
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b)
}

func unixOrZero(v *big.Int) int64 {
	if v == nil {
		return 0
	}
	return v.Int64()
}
