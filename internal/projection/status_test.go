package projection

import (
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/fairfund-scanner/internal/chain"
	"github.com/fairfund-scanner/internal/types"
)

const testNow = int64(1_700_000_000)

func record(goal, raised int64, deadline int64, withdrawn, cancelled bool) chain.RawProject {
	return chain.RawProject{
		Goal:        big.NewInt(goal),
		TotalRaised: big.NewInt(raised),
		Deadline:    big.NewInt(deadline),
		Withdrawn:   withdrawn,
		Cancelled:   cancelled,
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name   string
		record chain.RawProject
		want   types.ProjectStatus
	}{
		{"cancelled beats met goal", record(100, 200, testNow+1000, false, true), types.StatusFailed},
		{"cancelled beats withdrawn", record(100, 200, testNow+1000, true, true), types.StatusFailed},
		{"withdrawn implies funded", record(100, 0, testNow-1000, true, false), types.StatusFunded},
		{"goal met", record(100, 100, testNow+1000, false, false), types.StatusFunded},
		{"goal exceeded", record(100, 250, testNow+1000, false, false), types.StatusFunded},
		{"goal met after deadline still funded", record(100, 100, testNow-1000, false, false), types.StatusFunded},
		{"deadline passed short of goal", record(100, 99, testNow-1, false, false), types.StatusFailed},
		{"deadline exactly now fails", record(100, 50, testNow, false, false), types.StatusFailed},
		{"running campaign", record(100, 50, testNow+1, false, false), types.StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.record, testNow))
		})
	}
}

func TestDeriveStatusNilAmounts(t *testing.T) {
	// A zero-value record must still map to a status.
	status := DeriveStatus(chain.RawProject{}, testNow)
	assert.Equal(t, types.StatusFunded, status) // nil raised >= nil goal (both zero)
}

func TestDeriveStatusProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	genRecord := gopter.CombineGens(
		gen.Int64Range(0, 1_000_000),       // goal
		gen.Int64Range(0, 2_000_000),       // raised
		gen.Int64Range(0, 2*testNow),       // deadline
		gen.Bool(),                         // withdrawn
		gen.Bool(),                         // cancelled
	).Map(func(vals []interface{}) chain.RawProject {
		return record(vals[0].(int64), vals[1].(int64), vals[2].(int64), vals[3].(bool), vals[4].(bool))
	})

	properties.Property("cancelled always fails", prop.ForAll(
		func(r chain.RawProject) bool {
			r.Cancelled = true
			return DeriveStatus(r, testNow) == types.StatusFailed
		},
		genRecord,
	))

	properties.Property("withdrawn without cancellation is funded", prop.ForAll(
		func(r chain.RawProject) bool {
			r.Cancelled = false
			r.Withdrawn = true
			return DeriveStatus(r, testNow) == types.StatusFunded
		},
		genRecord,
	))

	properties.Property("derivation is deterministic and total", prop.ForAll(
		func(r chain.RawProject, now int64) bool {
			first := DeriveStatus(r, now)
			if first != types.StatusActive && first != types.StatusFunded && first != types.StatusFailed {
				return false
			}
			return DeriveStatus(r, now) == first
		},
		genRecord,
		gen.Int64Range(0, 2*testNow),
	))

	properties.TestingRun(t)
}
